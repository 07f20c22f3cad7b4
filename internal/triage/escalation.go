package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/packassist/internal/incident"
)

// EscalationKind says why a human team is being notified.
type EscalationKind string

const (
	EscalationSuccessPersists  EscalationKind = "success_persists"
	EscalationWorkaroundFailed EscalationKind = "workaround_failed"
	EscalationUnknownFailure   EscalationKind = "unknown_failure"
)

// Notifier delivers escalations to the IT team.
type Notifier interface {
	SendEscalation(ctx context.Context, e *Escalation) error
}

// Escalation carries both the structured facts and the rendered email body,
// so each transport can pick what it needs.
type Escalation struct {
	Kind    EscalationKind
	Subject string
	Body    string

	SessionID   string
	IncidentID  string
	OrderID     string
	ContainerID string

	LogStatus   incident.LogStatus
	LogTime     time.Time
	Payload     string
	FailureType string
	Workaround  string
	UserMessage string
}

// Identifier is the order id, or the container id when no order is known.
func (e *Escalation) Identifier() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.ContainerID
}

func escalationSubject(kind EscalationKind, id string) string {
	switch kind {
	case EscalationSuccessPersists:
		return "Escalation Request: Issue despite success response " + id
	case EscalationWorkaroundFailed:
		return "Escalation Request: Workaround failed for " + id
	default:
		return "Escalation Request: Unknown failure for " + id
	}
}

type escalationFacts struct {
	Reason       string `json:"reason"`
	IncidentID   string `json:"incident_id,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
	ContainerID  string `json:"container_id,omitempty"`
	CMSStatus    string `json:"cms_last_status,omitempty"`
	CMSTime      string `json:"cms_last_time,omitempty"`
	CMSResponse  string `json:"cms_response,omitempty"`
	FailureType  string `json:"failure_type,omitempty"`
	Workaround   string `json:"workaround_tried,omitempty"`
	UserReported string `json:"user_reported,omitempty"`
}

func (e *Escalation) reason() string {
	switch e.Kind {
	case EscalationSuccessPersists:
		return "The CMS reports success but the user still sees a problem."
	case EscalationWorkaroundFailed:
		return "The suggested workaround did not resolve the problem."
	default:
		return "The CMS reports a failure that matches no known issue."
	}
}

func (e *Escalation) facts() escalationFacts {
	f := escalationFacts{
		Reason:       e.reason(),
		IncidentID:   e.IncidentID,
		OrderID:      e.OrderID,
		ContainerID:  e.ContainerID,
		CMSStatus:    string(e.LogStatus),
		CMSResponse:  e.Payload,
		FailureType:  e.FailureType,
		Workaround:   e.Workaround,
		UserReported: e.UserMessage,
	}
	if !e.LogTime.IsZero() {
		f.CMSTime = e.LogTime.UTC().Format(time.RFC3339)
	}
	return f
}

// templateBody is the email used when the oracle cannot draft one.
func (e *Escalation) templateBody() string {
	var b strings.Builder
	b.WriteString("Hello IT Team,\n\n")
	b.WriteString(e.reason() + "\n\n")
	if e.IncidentID != "" {
		fmt.Fprintf(&b, "Incident: %s\n", e.IncidentID)
	}
	if e.OrderID != "" {
		fmt.Fprintf(&b, "Order: %s\n", e.OrderID)
	}
	if e.ContainerID != "" {
		fmt.Fprintf(&b, "Container: %s\n", e.ContainerID)
	}
	if e.LogStatus != "" {
		fmt.Fprintf(&b, "Latest CMS status: %s", e.LogStatus)
		if !e.LogTime.IsZero() {
			fmt.Fprintf(&b, " at %s", e.LogTime.UTC().Format(time.RFC3339))
		}
		b.WriteString("\n")
	}
	if e.Payload != "" {
		fmt.Fprintf(&b, "CMS response: %s\n", e.Payload)
	}
	if e.FailureType != "" {
		fmt.Fprintf(&b, "Known issue: %s (workaround tried: %s)\n", e.FailureType, e.Workaround)
	}
	if e.UserMessage != "" {
		fmt.Fprintf(&b, "User reported: %q\n", e.UserMessage)
	}
	b.WriteString("\nPlease investigate and resolve, and reach out to the flow room for further details.\n\n")
	b.WriteString("Best Regards,\nIT Support Agent")
	return b.String()
}
