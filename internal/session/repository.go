package session

import (
	"context"
	"time"
)

// Repository stores sessions by id. Implementations return copies so callers
// never share a *Session with the store.
type Repository interface {
	// Get returns (nil, false, nil) for an unknown id.
	Get(ctx context.Context, id string) (*Session, bool, error)
	Put(ctx context.Context, s *Session) error
	// Delete is a no-op for an unknown id.
	Delete(ctx context.Context, id string) error
	// Reap deletes sessions last updated before idleBefore and returns how many.
	Reap(ctx context.Context, idleBefore time.Time) (int, error)
}
