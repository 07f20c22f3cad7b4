package triage

import (
	"context"
	"errors"
	"fmt"

	"github.com/linnemanlabs/packassist/internal/incident"
	"github.com/linnemanlabs/packassist/internal/session"
)

// Lifecycle creates incidents and moves them (and the session) between statuses.
type Lifecycle struct {
	store incident.Store
	ids   *incident.IDGenerator
	hooks Hooks
}

func NewLifecycle(store incident.Store, ids *incident.IDGenerator, hooks Hooks) *Lifecycle {
	return &Lifecycle{store: store, ids: ids, hooks: hooks}
}

// maxCreateAttempts bounds how many ids Ensure tries when other writers on
// the same store already hold the generated ones.
const maxCreateAttempts = 32

// Ensure creates an InProgress incident for the session's identifiers unless
// the session already has one. It reports whether a record was created. An
// id the store already holds is skipped for the generator's next one.
func (l *Lifecycle) Ensure(ctx context.Context, s *session.Session) (bool, error) {
	if s.IncidentID != "" {
		return false, nil
	}
	inc := &incident.Incident{
		OrderID:      s.OrderID,
		ContainerID:  s.ContainerID,
		IssueSummary: issueSummary(s),
		Status:       incident.StatusInProgress,
	}
	var err error
	for range maxCreateAttempts {
		inc.ID = l.ids.Next()
		if err = l.store.CreateIncident(ctx, inc); !errors.Is(err, incident.ErrDuplicateID) {
			break
		}
	}
	if err != nil {
		return false, fmt.Errorf("create incident: %w", err)
	}
	s.IncidentID = inc.ID
	s.Status = incident.StatusInProgress
	l.hooks.incidentCreated()
	return true, nil
}

// Transition moves the session's incident to status. The session status
// changes only once the store accepted the update.
func (l *Lifecycle) Transition(ctx context.Context, s *session.Session, status incident.Status) error {
	if s.IncidentID == "" {
		return fmt.Errorf("transition to %s: session %s has no incident", status, s.ID)
	}
	if err := l.store.UpdateIncidentStatus(ctx, s.IncidentID, status); err != nil {
		return fmt.Errorf("update incident %s to %s: %w", s.IncidentID, status, err)
	}
	s.Status = status
	return nil
}

func issueSummary(s *session.Session) string {
	switch {
	case s.OrderID != "" && s.ContainerID != "":
		return fmt.Sprintf("Issue with Order %s / Container %s", s.OrderID, s.ContainerID)
	case s.OrderID != "":
		return "Issue with Order " + s.OrderID
	default:
		return "Issue with Container " + s.ContainerID
	}
}
