// Package session holds per-conversation dialogue state and the repository,
// locking, and reaping machinery around it.
package session

import (
	"fmt"
	"slices"
	"time"

	"github.com/linnemanlabs/packassist/internal/incident"
)

// SubDialogue names the follow-up question a session is waiting on.
// A session waits on at most one at a time.
type SubDialogue uint8

const (
	None SubDialogue = iota
	SuccessConfirm
	WorkaroundConfirm
	SummaryScope
	IncidentChoice
)

var subDialogueNames = [...]string{
	None:              "none",
	SuccessConfirm:    "success_confirm",
	WorkaroundConfirm: "workaround_confirm",
	SummaryScope:      "summary_scope",
	IncidentChoice:    "incident_choice",
}

func (d SubDialogue) String() string {
	if int(d) < len(subDialogueNames) {
		return subDialogueNames[d]
	}
	return fmt.Sprintf("SubDialogue(%d)", d)
}

// MarshalText encodes the sub-dialogue by name so stored sessions stay readable.
func (d SubDialogue) MarshalText() ([]byte, error) {
	if int(d) >= len(subDialogueNames) {
		return nil, fmt.Errorf("unknown sub-dialogue %d", d)
	}
	return []byte(subDialogueNames[d]), nil
}

// UnmarshalText decodes a name written by MarshalText.
func (d *SubDialogue) UnmarshalText(b []byte) error {
	for i, n := range subDialogueNames {
		if n == string(b) {
			*d = SubDialogue(i)
			return nil
		}
	}
	return fmt.Errorf("unknown sub-dialogue %q", b)
}

// SummaryRequest carries identifiers collected for a summary that is still
// waiting on the user to name what to summarize.
type SummaryRequest struct {
	IncidentID  string `json:"incident_id,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	ContainerID string `json:"container_id,omitempty"`
}

// AwaitingIDs reports whether r is a request still waiting for the user to
// name anything at all. A nil request is not awaiting.
func (r *SummaryRequest) AwaitingIDs() bool {
	return r != nil && r.IncidentID == "" && r.OrderID == "" && r.ContainerID == ""
}

// Session is one conversation's accumulated state. Empty identifier fields
// mean the identifier is not known yet.
type Session struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id,omitempty"`
	ContainerID string          `json:"container_id,omitempty"`
	IncidentID  string          `json:"incident_id,omitempty"`
	Status      incident.Status `json:"status,omitempty"`

	Pending         SubDialogue `json:"pending"`
	IncidentChoices []string    `json:"incident_choices,omitempty"`

	LastIntent      string          `json:"last_intent,omitempty"`
	LastUserMessage string          `json:"last_user_message,omitempty"`
	SummaryRequest  *SummaryRequest `json:"summary_request,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a blank session.
func New(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	cp := *s
	cp.IncidentChoices = slices.Clone(s.IncidentChoices)
	if s.SummaryRequest != nil {
		sr := *s.SummaryRequest
		cp.SummaryRequest = &sr
	}
	return &cp
}

// Reset blanks every field except the key and creation time.
func (s *Session) Reset() {
	*s = Session{ID: s.ID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

// Await makes d the active sub-dialogue. Use AwaitIncidentChoice for IncidentChoice.
func (s *Session) Await(d SubDialogue) {
	s.Pending = d
	s.IncidentChoices = nil
}

// AwaitIncidentChoice asks the user to pick one of ids on the next turn.
func (s *Session) AwaitIncidentChoice(ids []string) {
	s.Pending = IncidentChoice
	s.IncidentChoices = slices.Clone(ids)
}

// ClearPending ends whatever sub-dialogue is active.
func (s *Session) ClearPending() {
	s.Await(None)
}

func (s *Session) AwaitingSuccessConfirmation() bool { return s.Pending == SuccessConfirm }
func (s *Session) AwaitingUserConfirmation() bool    { return s.Pending == WorkaroundConfirm }
func (s *Session) ConfirmingSummaryScope() bool      { return s.Pending == SummaryScope }

// PendingIncidentChoice returns the candidate ids, or nil when no choice is pending.
func (s *Session) PendingIncidentChoice() []string {
	if s.Pending != IncidentChoice {
		return nil
	}
	return s.IncidentChoices
}

// HasIdentifier reports whether an order or container is known.
func (s *Session) HasIdentifier() bool {
	return s.OrderID != "" || s.ContainerID != ""
}

// Validate checks the structural invariants a stored session must satisfy.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if (s.Pending == IncidentChoice) != (len(s.IncidentChoices) > 0) {
		return fmt.Errorf("session %s: pending %s with %d incident choices", s.ID, s.Pending, len(s.IncidentChoices))
	}
	if s.Status != incident.StatusNone && !s.Status.Valid() {
		return fmt.Errorf("session %s: invalid status %q", s.ID, s.Status)
	}
	return nil
}
