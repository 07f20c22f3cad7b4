package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/linnemanlabs/go-core/log"
)

// cronParser accepts standard 5-field expressions and @every/@hourly descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Reaper deletes sessions idle for longer than a TTL on a cron schedule.
type Reaper struct {
	repo     Repository
	schedule cron.Schedule
	ttl      time.Duration
	lg       log.Logger
	now      func() time.Time

	// OnReap, when set, is called with the count of each successful pass.
	OnReap func(n int)
}

// NewReaper parses expr and returns a Reaper. ttl must be positive.
func NewReaper(repo Repository, expr string, ttl time.Duration, lg log.Logger) (*Reaper, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session idle ttl must be positive, got %s", ttl)
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse reap schedule %q: %w", expr, err)
	}
	return &Reaper{repo: repo, schedule: sched, ttl: ttl, lg: lg, now: time.Now}, nil
}

// ReapOnce deletes every session idle since before now-ttl.
func (r *Reaper) ReapOnce(ctx context.Context) (int, error) {
	n, err := r.repo.Reap(ctx, r.now().Add(-r.ttl))
	if err != nil {
		return n, fmt.Errorf("reap sessions: %w", err)
	}
	if r.OnReap != nil {
		r.OnReap(n)
	}
	return n, nil
}

// Run reaps on schedule until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	for {
		now := r.now()
		wait := r.schedule.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		n, err := r.ReapOnce(ctx)
		if err != nil {
			r.lg.Error(ctx, err, "session reap failed")
			continue
		}
		if n > 0 {
			r.lg.Info(ctx, "reaped idle sessions", "count", n, "ttl", r.ttl.String())
		}
	}
}
