package incident

import "strings"

// wildcards are placeholder characters stripped from stored patterns before
// substring matching (patterns are often written as SQL LIKE expressions).
const wildcards = "%*"

// MatchFailure returns the pattern that explains payload.
//
// An empty payload only matches the first null pattern. A non-empty payload is
// compared against the non-null patterns in order; the first whose text, with
// wildcards removed and case folded, occurs in the case-folded payload wins.
func MatchFailure(patterns []FailurePattern, payload string) (*FailurePattern, bool) {
	if strings.TrimSpace(payload) == "" {
		for i := range patterns {
			if patterns[i].IsNull() {
				p := patterns[i]
				return &p, true
			}
		}
		return nil, false
	}

	haystack := strings.ToLower(payload)
	for i := range patterns {
		if patterns[i].IsNull() {
			continue
		}
		needle := normalizePattern(patterns[i].Pattern)
		if needle == "" {
			// a pattern made only of wildcards would match everything
			continue
		}
		if strings.Contains(haystack, needle) {
			p := patterns[i]
			return &p, true
		}
	}
	return nil, false
}

func normalizePattern(p string) string {
	p = strings.Map(func(r rune) rune {
		if strings.ContainsRune(wildcards, r) {
			return -1
		}
		return r
	}, p)
	return strings.ToLower(strings.TrimSpace(p))
}
