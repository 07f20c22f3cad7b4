package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/linnemanlabs/packassist/internal/session"
)

var (
	orderRe     = regexp.MustCompile(`(?i)\bORD-?\d+\b`)
	containerRe = regexp.MustCompile(`(?i)\bCONT-?\d+\b`)
	incidentRe  = regexp.MustCompile(`(?i)\bINC-\d{8}-\d{6}\b`)

	orderFmt     = regexp.MustCompile(`^ORD-?\d+$`)
	containerFmt = regexp.MustCompile(`^CONT-?\d+$`)
	incidentFmt  = regexp.MustCompile(`^INC-\d{8}-\d{6}$`)

	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// Identifiers are the ids mentioned in one message. Empty means not mentioned.
type Identifiers struct {
	OrderID     string `json:"order_id,omitempty"`
	ContainerID string `json:"container_id,omitempty"`
	IncidentID  string `json:"incident_id,omitempty"`
}

// Empty reports whether no identifier was found.
func (ids Identifiers) Empty() bool {
	return ids.OrderID == "" && ids.ContainerID == "" && ids.IncidentID == ""
}

// IsOnly reports whether text is nothing but one of the identifiers.
func (ids Identifiers) IsOnly(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	for _, id := range []string{ids.OrderID, ids.ContainerID, ids.IncidentID} {
		if id != "" && strings.EqualFold(t, id) {
			return true
		}
	}
	return false
}

// MergeInto fills the session's empty order and container fields. Known
// values are never replaced. Incident ids are not merged here because the
// controller only adopts incidents that exist.
func (ids Identifiers) MergeInto(s *session.Session) {
	if s.OrderID == "" {
		s.OrderID = ids.OrderID
	}
	if s.ContainerID == "" {
		s.ContainerID = ids.ContainerID
	}
}

// extraction is the outcome of asking the oracle for identifiers.
// fallback means the regex branch must run.
type extraction struct {
	ids      Identifiers
	fallback bool
	reason   error
}

func parseExtraction(raw string) extraction {
	obj := jsonObjectRe.FindString(raw)
	if obj == "" {
		return extraction{fallback: true, reason: fmt.Errorf("no JSON object in %q", raw)}
	}
	var out struct {
		OrderID     *string `json:"order_id"`
		ContainerID *string `json:"container_id"`
		IncidentID  *string `json:"incident_id"`
	}
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return extraction{fallback: true, reason: fmt.Errorf("decode: %w", err)}
	}

	var ids Identifiers
	for _, f := range []struct {
		dst *string
		src *string
		fmt *regexp.Regexp
	}{
		{&ids.OrderID, out.OrderID, orderFmt},
		{&ids.ContainerID, out.ContainerID, containerFmt},
		{&ids.IncidentID, out.IncidentID, incidentFmt},
	} {
		if f.src == nil {
			continue
		}
		v := strings.ToUpper(strings.TrimSpace(*f.src))
		if v == "" || v == "NULL" {
			continue
		}
		if !f.fmt.MatchString(v) {
			return extraction{fallback: true, reason: fmt.Errorf("value %q does not match %s", v, f.fmt)}
		}
		*f.dst = v
	}
	return extraction{ids: ids}
}

// regexExtract finds identifiers directly in the text.
func regexExtract(text string) Identifiers {
	return Identifiers{
		OrderID:     strings.ToUpper(orderRe.FindString(text)),
		ContainerID: strings.ToUpper(containerRe.FindString(text)),
		IncidentID:  strings.ToUpper(incidentRe.FindString(text)),
	}
}

// Resolver extracts identifiers from free text.
type Resolver struct {
	oracle *Oracle
}

func NewResolver(oracle *Oracle) *Resolver {
	return &Resolver{oracle: oracle}
}

// Extract asks the oracle first and falls back to pattern matching when its
// answer is missing or malformed. Ids literally present in the text fill any
// gaps the oracle left.
func (r *Resolver) Extract(ctx context.Context, text string) Identifiers {
	literal := regexExtract(text)

	raw, err := r.oracle.ExtractIdentifiers(ctx, text)
	if err != nil {
		r.oracle.fallback(ctx, OpExtractIdentifiers, err)
		return literal
	}
	ex := parseExtraction(raw)
	if ex.fallback {
		r.oracle.fallback(ctx, OpExtractIdentifiers, ex.reason)
		return literal
	}

	ids := ex.ids
	if ids.OrderID == "" {
		ids.OrderID = literal.OrderID
	}
	if ids.ContainerID == "" {
		ids.ContainerID = literal.ContainerID
	}
	if ids.IncidentID == "" {
		ids.IncidentID = literal.IncidentID
	}
	return ids
}
