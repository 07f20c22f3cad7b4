package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/packassist/internal/incident"
)

// replies phrases every user-facing message through the oracle and falls
// back to a fixed template when the oracle is unavailable.
type replies struct {
	oracle *Oracle
}

func (r replies) or(ctx context.Context, op string, out string, err error, fallback string) string {
	if err != nil {
		r.oracle.fallback(ctx, op, err)
		return fallback
	}
	return out
}

func (r replies) greeting(ctx context.Context, text string) string {
	out, err := r.oracle.PhraseGreeting(ctx, text)
	return r.or(ctx, OpPhraseGreeting, out, err,
		"Hi, I'm Pack Assist. How can I help you today?")
}

func (r replies) thanks(ctx context.Context, text string) string {
	out, err := r.oracle.PhraseThanks(ctx, text)
	return r.or(ctx, OpPhraseThanks, out, err,
		"Glad I could help! Reach out any time.")
}

func (r replies) missingID(ctx context.Context, text string) string {
	out, err := r.oracle.PhraseMissingIDRequest(ctx, text)
	return r.or(ctx, OpPhraseMissingID, out, err,
		"Could you share the Order ID or Container ID so I can look into it?")
}

func (r replies) missingSummaryIDs(ctx context.Context, text string) string {
	out, err := r.oracle.PhraseMissingSummaryIDs(ctx, text)
	return r.or(ctx, OpPhraseMissingSummary, out, err,
		"Which Incident ID, Order ID, or Container ID would you like a summary for?")
}

func (r replies) workaround(ctx context.Context, text string, fp *incident.FailurePattern) string {
	out, err := r.oracle.PhraseWorkaround(ctx, text, fp.FailureType, fp.Workaround)
	if err == nil {
		return out
	}
	r.oracle.fallback(ctx, OpPhraseWorkaround, err)

	var b strings.Builder
	fmt.Fprintf(&b, "This looks like a known issue: %s.\n\n%s\n\n", fp.FailureType, fp.Workaround)
	if hint, ok := workaroundHints[fp.FailureType]; ok {
		b.WriteString(hint + "\n\n")
	}
	b.WriteString("Did that fix the problem?")
	return b.String()
}

func (r replies) escalationBody(ctx context.Context, e *Escalation) string {
	out, err := r.oracle.PhraseEscalationEmail(ctx, e)
	return r.or(ctx, OpPhraseEscalation, out, err, e.templateBody())
}

func (r replies) summary(ctx context.Context, f *SummaryFacts) string {
	out, err := r.oracle.PhraseSummary(ctx, f)
	return r.or(ctx, OpPhraseSummary, out, err, f.template())
}

func (r replies) notice(ctx context.Context, n *Notice) string {
	out, err := r.oracle.PhraseMismatchOrNotFound(ctx, n)
	return r.or(ctx, OpPhraseNotice, out, err, n.template())
}

// Deterministic replies that never go through the oracle.

func noActivityReply(kind, id string) string {
	return fmt.Sprintf("I couldn't find any recent activity for the given %s ID %s. Please double-check it and try again.", kind, id)
}

func successConfirmPrompt(kind, id string, at time.Time) string {
	return fmt.Sprintf("Our records show %s %s was processed successfully at %s. Are you still seeing an issue with it?",
		kind, id, at.UTC().Format("2006-01-02 15:04 MST"))
}

func rePromptStillBroken() string {
	return "Sorry, I didn't catch that. Are you still seeing the issue? Please answer yes or no."
}

func rePromptWorkaround() string {
	return "Sorry, I didn't catch that. Did the workaround fix the problem? Please answer yes or no."
}

func closedReply(incidentID string) string {
	if incidentID == "" {
		return "Great, glad everything looks fine. Let me know if anything else comes up."
	}
	return fmt.Sprintf("Great, glad everything looks fine. I've closed incident %s.", incidentID)
}

func resolvedReply(incidentID string) string {
	return fmt.Sprintf("Glad the workaround did the trick! I've marked incident %s as resolved.", incidentID)
}

func escalatedReply(incidentID, body string) string {
	return fmt.Sprintf("I've escalated this to the IT team under incident %s. Here's what I sent:\n\n%s", incidentID, body)
}

func summaryScopePrompt(incidentID string) string {
	return fmt.Sprintf("Would you like a summary of the current incident %s, or of a new one? Reply \"current\" or \"new\".", incidentID)
}

func incidentChoicePrompt(choices []string) string {
	return "Please reply with one of the valid incident IDs: " + strings.Join(choices, ", ")
}
