package triage

import (
	"context"
	"fmt"
	"strings"
)

// Confirmation is how a user answered a yes/no follow-up.
type Confirmation int

const (
	Unclear Confirmation = iota
	Persists
	Resolved
)

func (c Confirmation) String() string {
	switch c {
	case Persists:
		return "persists"
	case Resolved:
		return "resolved"
	default:
		return "unclear"
	}
}

// Question identifies which yes/no question is being answered; it decides
// what "yes" means.
type Question int

const (
	// QuestionStillBroken is "do you still see an issue?": yes means Persists.
	QuestionStillBroken Question = iota
	// QuestionWorkaroundWorked is "did the workaround fix it?": yes means Resolved.
	QuestionWorkaroundWorked
)

var (
	affirmative = map[string]bool{"yes": true, "yeah": true, "yep": true, "y": true, "yup": true, "sure": true}
	negative    = map[string]bool{"no": true, "nope": true, "nah": true, "n": true}
)

func (q Question) yes() Confirmation {
	if q == QuestionWorkaroundWorked {
		return Resolved
	}
	return Persists
}

func (q Question) no() Confirmation {
	if q == QuestionWorkaroundWorked {
		return Persists
	}
	return Resolved
}

// fastPath answers exact yes/no tokens without the oracle.
func fastPath(text string, q Question) (Confirmation, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case affirmative[t]:
		return q.yes(), true
	case negative[t]:
		return q.no(), true
	}
	return Unclear, false
}

// parseConfirmation maps either label vocabulary onto a Confirmation.
func parseConfirmation(label string, q Question) (Confirmation, error) {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(label), `"'.`)) {
	case "issue_persists", "failure":
		return Persists, nil
	case "issue_resolved", "success":
		return Resolved, nil
	case "unclear":
		return Unclear, nil
	case "yes":
		return q.yes(), nil
	case "no":
		return q.no(), nil
	}
	return Unclear, fmt.Errorf("%s: unrecognized label %q", OpInterpretConfirmation, label)
}

// Interpreter classifies replies to confirmation questions.
type Interpreter struct {
	oracle *Oracle
}

func NewInterpreter(oracle *Oracle) *Interpreter {
	return &Interpreter{oracle: oracle}
}

// Interpret never fails: oracle errors and unknown labels are Unclear.
func (i *Interpreter) Interpret(ctx context.Context, text string, q Question) Confirmation {
	if c, ok := fastPath(text, q); ok {
		return c
	}
	label, err := i.oracle.InterpretConfirmation(ctx, text, q)
	if err != nil {
		i.oracle.fallback(ctx, OpInterpretConfirmation, err)
		return Unclear
	}
	c, err := parseConfirmation(label, q)
	if err != nil {
		i.oracle.fallback(ctx, OpInterpretConfirmation, err)
		return Unclear
	}
	return c
}
