// Package memstore provides an in-memory implementation of incident.Store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/packassist/internal/incident"
)

// Store holds incidents, CMS logs and known failures in memory. Suitable for dev/testing.
type Store struct {
	mu        sync.RWMutex
	incidents map[string]*incident.Incident // incident ID -> incident
	logs      []incident.LogEntry
	patterns  []incident.FailurePattern
	nextID    int64
	now       func() time.Time
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		incidents: make(map[string]*incident.Incident),
		now:       time.Now,
	}
}

// LatestLog returns a copy of the newest log for the order, or the container when no order is given.
func (s *Store) LatestLog(_ context.Context, orderID, containerID string) (*incident.LogEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *incident.LogEntry
	for i := range s.logs {
		l := &s.logs[i]
		switch {
		case orderID != "":
			if l.OrderID != orderID {
				continue
			}
		case containerID != "":
			if l.ContainerID != containerID {
				continue
			}
		default:
			return nil, false, nil
		}
		if latest == nil || l.Timestamp.After(latest.Timestamp) {
			latest = l
		}
	}
	if latest == nil {
		return nil, false, nil
	}
	cp := *latest
	return &cp, true, nil
}

// KnownFailures returns a copy of the patterns in insertion order.
func (s *Store) KnownFailures(_ context.Context) ([]incident.FailurePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]incident.FailurePattern, len(s.patterns))
	copy(out, s.patterns)
	return out, nil
}

// CreateIncident stores a copy of inc. CreatedAt defaults to now.
func (s *Store) CreateIncident(_ context.Context, inc *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[inc.ID]; ok {
		return fmt.Errorf("memstore: create incident %s: %w", inc.ID, incident.ErrDuplicateID)
	}
	cp := *inc
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.incidents[cp.ID] = &cp
	return nil
}

// UpdateIncidentStatus transitions an existing incident.
func (s *Store) UpdateIncidentStatus(_ context.Context, id string, status incident.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return incident.ErrNotFound
	}
	inc.Status = status
	inc.UpdatedAt = s.now()
	return nil
}

// GetIncident retrieves an incident by ID. Returns a copy.
func (s *Store) GetIncident(_ context.Context, id string) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, false, nil
	}
	cp := *inc
	return &cp, true, nil
}

// OrderExists reports whether any CMS log references the order.
func (s *Store) OrderExists(_ context.Context, orderID string) (bool, error) {
	if orderID == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.logs {
		if s.logs[i].OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

// ContainerExists reports whether any CMS log references the container.
func (s *Store) ContainerExists(_ context.Context, containerID string) (bool, error) {
	if containerID == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.logs {
		if s.logs[i].ContainerID == containerID {
			return true, nil
		}
	}
	return false, nil
}

// IncidentsFor returns copies of incidents matching every non-empty identifier, newest first.
func (s *Store) IncidentsFor(_ context.Context, orderID, containerID string) ([]incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []incident.Incident
	for _, inc := range s.incidents {
		if orderID != "" && inc.OrderID != orderID {
			continue
		}
		if containerID != "" && inc.ContainerID != containerID {
			continue
		}
		out = append(out, *inc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// PutLog appends a copy of the log entry.
func (s *Store) PutLog(_ context.Context, entry *incident.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	return nil
}

// PutKnownFailure appends a pattern, assigning the next store-order ID.
func (s *Store) PutKnownFailure(_ context.Context, p *incident.FailurePattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.patterns = append(s.patterns, *p)
	return nil
}
