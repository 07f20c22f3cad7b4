package incident

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a status transition targets an unknown incident.
var ErrNotFound = errors.New("incident not found")

// ErrDuplicateID is returned when CreateIncident is given an id that is already stored.
var ErrDuplicateID = errors.New("incident id already exists")

// Status tracks where an incident (and the session working on it) is in its lifecycle.
type Status string

const (
	// StatusNone means no issue is being worked on yet. Sessions only.
	StatusNone Status = ""

	// StatusInProgress means the incident was logged and is being triaged
	StatusInProgress Status = "In Progress"

	// StatusOpen means the user confirmed the problem persists
	StatusOpen Status = "Open"

	// StatusResolved means a workaround fixed the problem
	StatusResolved Status = "Resolved"

	// StatusClosed means the user confirmed there is no problem after all
	StatusClosed Status = "Closed"

	// StatusEscalatedToIT means a human team was notified
	StatusEscalatedToIT Status = "EscalatedToIT"
)

// Valid reports whether s is a status an incident record may carry.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusOpen, StatusResolved, StatusClosed, StatusEscalatedToIT:
		return true
	}
	return false
}

// AllowsNewIssue reports whether a session in this status may start a new issue.
func (s Status) AllowsNewIssue() bool {
	switch s {
	case StatusOpen, StatusResolved, StatusClosed, StatusEscalatedToIT:
		return true
	}
	return false
}

// Incident is a tracked record of a reported problem.
type Incident struct {
	ID           string    `json:"incident_id"`
	OrderID      string    `json:"order_id,omitempty"`
	ContainerID  string    `json:"container_id,omitempty"`
	IssueSummary string    `json:"issue_summary"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// LogStatus is the outcome recorded by the CMS for a processing attempt.
type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogFailure LogStatus = "failure"
)

// LogEntry is one CMS processing attempt for an order or container.
// An empty ResponsePayload means the CMS returned nothing.
type LogEntry struct {
	OrderID         string    `json:"order_id,omitempty" yaml:"order_id"`
	ContainerID     string    `json:"container_id,omitempty" yaml:"container_id"`
	Timestamp       time.Time `json:"timestamp" yaml:"timestamp"`
	Status          LogStatus `json:"status" yaml:"status"`
	ResponsePayload string    `json:"response_payload,omitempty" yaml:"response_payload"`
}

// FailurePattern maps a payload fragment to a remediation. An empty Pattern
// is the null pattern, which only ever matches an empty payload.
type FailurePattern struct {
	ID          int64  `json:"id" yaml:"-"`
	Pattern     string `json:"pattern,omitempty" yaml:"pattern"`
	Workaround  string `json:"workaround" yaml:"workaround"`
	FailureType string `json:"failure_type" yaml:"failure_type"`
}

// IsNull reports whether the pattern is the null pattern.
func (p *FailurePattern) IsNull() bool {
	return strings.TrimSpace(p.Pattern) == ""
}
