package triage

import "strings"

// Intent is what the user is trying to do with a message.
type Intent string

const (
	IntentGreeting   Intent = "greeting"
	IntentThanks     Intent = "thanks"
	IntentEndOfConvo Intent = "end_of_convo"
	IntentNewIssue   Intent = "new_issue"
	IntentSummary    Intent = "summary"
	IntentNormal     Intent = "normal"
)

var intents = []Intent{IntentGreeting, IntentThanks, IntentEndOfConvo, IntentNewIssue, IntentSummary, IntentNormal}

// ParseIntent normalizes an oracle label. Anything unrecognized is normal.
func ParseIntent(label string) (Intent, bool) {
	l := strings.ToLower(strings.Trim(strings.TrimSpace(label), `"'.`))
	for _, in := range intents {
		if l == string(in) {
			return in, true
		}
	}
	return IntentNormal, false
}
