// Package notify fans escalations out to several delivery channels.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/packassist/internal/triage"
)

// ErrNoChannels is returned when an escalation has nowhere to go.
var ErrNoChannels = errors.New("no escalation channels configured")

// Channel is a named delivery target.
type Channel struct {
	Name     string
	Notifier triage.Notifier
}

// Fanout delivers each escalation to every channel. An escalation counts as
// sent when at least one channel accepted it; the other failures are logged.
type Fanout struct {
	channels []Channel
	logger   log.Logger
}

func NewFanout(logger log.Logger, channels ...Channel) *Fanout {
	return &Fanout{channels: channels, logger: logger}
}

// Len reports the number of configured channels.
func (f *Fanout) Len() int { return len(f.channels) }

func (f *Fanout) SendEscalation(ctx context.Context, e *triage.Escalation) error {
	if len(f.channels) == 0 {
		return ErrNoChannels
	}

	var (
		errs      []error
		delivered int
	)
	for _, ch := range f.channels {
		if err := ch.Notifier.SendEscalation(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		f.logger.Warn(ctx, "escalation channel failed",
			"incident_id", e.IncidentID,
			"error", err.Error(),
		)
	}
	return nil
}

// Logger writes escalations to the log instead of delivering them. Used when
// no real channel is configured.
type Logger struct {
	logger log.Logger
}

func NewLogger(logger log.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) SendEscalation(ctx context.Context, e *triage.Escalation) error {
	l.logger.Warn(ctx, "escalation not delivered: no channel configured",
		"kind", string(e.Kind),
		"incident_id", e.IncidentID,
		"subject", e.Subject,
		"body", e.Body,
	)
	return nil
}
