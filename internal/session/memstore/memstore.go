// Package memstore provides an in-memory session.Repository.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/packassist/internal/session"
)

// Store keeps sessions in a map. Sessions are lost on restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// New initializes an empty Store.
func New() *Store {
	return &Store{sessions: make(map[string]*session.Session)}
}

// Get returns a copy of the session.
func (s *Store) Get(_ context.Context, id string) (*session.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false, nil
	}
	return sess.Clone(), true, nil
}

// Put stores a copy of sess.
func (s *Store) Put(_ context.Context, sess *session.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

// Delete removes the session if present.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Reap removes sessions last updated before idleBefore.
func (s *Store) Reap(_ context.Context, idleBefore time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(idleBefore) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
