package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/packassist/internal/incident"
	"github.com/linnemanlabs/packassist/internal/session"
)

// ErrEmptyMessage is returned for a turn with no text.
var ErrEmptyMessage = errors.New("message is empty")

// Service is the inbound boundary: one call per user turn.
type Service struct {
	sessions   session.Repository
	locker     *session.Locker
	controller *Controller
	store      incident.Store
	hooks      Hooks
	logger     log.Logger
	now        func() time.Time
}

// NewService wires a Service. Turns for the same session id are serialized
// through locker; different sessions run concurrently.
func NewService(sessions session.Repository, locker *session.Locker, controller *Controller, store incident.Store, hooks Hooks, logger log.Logger) *Service {
	return &Service{
		sessions:   sessions,
		locker:     locker,
		controller: controller,
		store:      store,
		hooks:      hooks,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleTurn processes one message for sessionID and returns the reply. The
// session is saved even when the turn fails so committed side effects are
// not repeated on retry.
func (s *Service) HandleTurn(ctx context.Context, sessionID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyMessage
	}

	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	defer unlock()

	start := s.now()
	L := s.logger.With("session_id", sessionID)

	sess, ok, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !ok {
		sess = session.New(sessionID, start)
		L.Info(ctx, "session started")
	}

	reply, next, err := s.controller.Process(ctx, text, sess)
	next.UpdatedAt = s.now()
	if perr := s.sessions.Put(ctx, next); perr != nil {
		err = errors.Join(err, fmt.Errorf("save session %s: %w", sessionID, perr))
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	intent, _ := ParseIntent(next.LastIntent)
	s.hooks.turn(intent, outcome, s.now().Sub(start).Seconds())

	if err != nil {
		L.Error(ctx, err, "turn failed", "intent", string(intent), "incident_id", next.IncidentID)
		return "", err
	}
	L.Info(ctx, "turn complete",
		"intent", string(intent),
		"status", string(next.Status),
		"pending", next.Pending.String(),
		"incident_id", next.IncidentID,
	)
	return reply, nil
}

// EndConversation forgets the session. Unknown ids are not an error.
func (s *Service) EndConversation(ctx context.Context, sessionID string) error {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", sessionID, err)
	}
	defer unlock()

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	s.logger.Info(ctx, "session ended", "session_id", sessionID)
	return nil
}

// GetIncident retrieves an incident by ID.
func (s *Service) GetIncident(ctx context.Context, id string) (*incident.Incident, bool, error) {
	return s.store.GetIncident(ctx, id)
}
