package triage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linnemanlabs/packassist/internal/incident"
	"github.com/linnemanlabs/packassist/internal/incident/memstore"
)

func TestLifecycle_EnsureCreatesOnce(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	var created int
	l := NewLifecycle(store, incident.NewIDGenerator(nil), Hooks{OnIncidentCreated: func() { created++ }})

	s := newSession()
	s.OrderID = "ORD1"
	s.ContainerID = "CONT2"

	ok, err := l.Ensure(context.Background(), s)
	if err != nil || !ok {
		t.Fatalf("Ensure = %v, %v", ok, err)
	}
	if !incident.IDPattern.MatchString(s.IncidentID) || s.Status != incident.StatusInProgress {
		t.Errorf("session = id %q status %q", s.IncidentID, s.Status)
	}

	inc, found, _ := store.GetIncident(context.Background(), s.IncidentID)
	if !found {
		t.Fatal("incident not stored")
	}
	if inc.IssueSummary != "Issue with Order ORD1 / Container CONT2" {
		t.Errorf("IssueSummary = %q", inc.IssueSummary)
	}

	ok, err = l.Ensure(context.Background(), s)
	if err != nil || ok {
		t.Errorf("second Ensure = %v, %v; want no-op", ok, err)
	}
	if created != 1 {
		t.Errorf("created hook fired %d times, want 1", created)
	}
}

func TestLifecycle_Transition(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	l := NewLifecycle(store, incident.NewIDGenerator(nil), Hooks{})
	ctx := context.Background()

	s := newSession()
	if err := l.Transition(ctx, s, incident.StatusOpen); err == nil {
		t.Error("transition without incident succeeded")
	}

	s.IncidentID = "INC-20990101-000000"
	err := l.Transition(ctx, s, incident.StatusOpen)
	if !errors.Is(err, incident.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if s.Status != incident.StatusNone {
		t.Errorf("session status changed on failed update: %q", s.Status)
	}

	s.ContainerID = "CONT2"
	s.IncidentID = ""
	if _, err := l.Ensure(ctx, s); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := l.Transition(ctx, s, incident.StatusResolved); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	inc, _, _ := store.GetIncident(ctx, s.IncidentID)
	if inc.Status != incident.StatusResolved || s.Status != incident.StatusResolved {
		t.Errorf("store %q session %q, want Resolved", inc.Status, s.Status)
	}
	if inc.IssueSummary != "Issue with Container CONT2" {
		t.Errorf("IssueSummary = %q", inc.IssueSummary)
	}
}

func TestLifecycle_EnsureSkipsIDsHeldByAnotherGenerator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.New()
	clock := func() time.Time { return fixedNow }

	// A burst from one process runs its generator ahead of the clock.
	first := NewLifecycle(store, incident.NewIDGenerator(clock), Hooks{})
	for i := 0; i < 3; i++ {
		s := newSession()
		s.OrderID = "ORD1"
		if _, err := first.Ensure(ctx, s); err != nil {
			t.Fatalf("first Ensure %d: %v", i, err)
		}
	}

	var created int
	second := NewLifecycle(store, incident.NewIDGenerator(clock), Hooks{OnIncidentCreated: func() { created++ }})
	s := newSession()
	s.OrderID = "ORD2"
	ok, err := second.Ensure(ctx, s)
	if err != nil || !ok {
		t.Fatalf("second Ensure = %v, %v", ok, err)
	}
	if s.IncidentID != "INC-20250819-090003" {
		t.Errorf("IncidentID = %q, want the first free id", s.IncidentID)
	}
	if created != 1 {
		t.Errorf("created hook fired %d times, want 1", created)
	}

	for _, id := range []string{"INC-20250819-090000", "INC-20250819-090001", "INC-20250819-090002"} {
		inc, found, _ := store.GetIncident(ctx, id)
		if !found || inc.OrderID != "ORD1" {
			t.Errorf("incident %s = %+v, want untouched ORD1 record", id, inc)
		}
	}
}

// dupStore reports every id as taken.
type dupStore struct {
	*memstore.Store
	calls int
}

func (d *dupStore) CreateIncident(context.Context, *incident.Incident) error {
	d.calls++
	return incident.ErrDuplicateID
}

func TestLifecycle_EnsureGivesUpOnDuplicates(t *testing.T) {
	t.Parallel()

	store := &dupStore{Store: memstore.New()}
	l := NewLifecycle(store, incident.NewIDGenerator(nil), Hooks{})
	s := newSession()
	s.OrderID = "ORD1"

	_, err := l.Ensure(context.Background(), s)
	if !errors.Is(err, incident.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if store.calls != maxCreateAttempts {
		t.Errorf("attempts = %d, want %d", store.calls, maxCreateAttempts)
	}
	if s.IncidentID != "" || s.Status != incident.StatusNone {
		t.Errorf("session advanced after failed create: id=%q status=%q", s.IncidentID, s.Status)
	}
}
