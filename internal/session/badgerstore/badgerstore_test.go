package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/linnemanlabs/packassist/internal/incident"
	"github.com/linnemanlabs/packassist/internal/session"
)

var _ session.Repository = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{}); err == nil {
		t.Error("expected error without path")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Date(2025, 8, 19, 12, 0, 0, 0, time.UTC)
	sess := session.New("s1", now)
	sess.ContainerID = "CONT1234"
	sess.Status = incident.StatusInProgress
	sess.LastIntent = "summary"
	sess.AwaitIncidentChoice([]string{"INC-20250819-100000", "INC-20250819-110000"})
	sess.SummaryRequest = &session.SummaryRequest{ContainerID: "CONT1234"}

	if err := s.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}

	if got.ContainerID != "CONT1234" || got.Status != incident.StatusInProgress || got.LastIntent != "summary" {
		t.Errorf("got %+v", got)
	}
	if got.Pending != session.IncidentChoice || len(got.PendingIncidentChoice()) != 2 {
		t.Errorf("pending = %s %v, want incident_choice with 2 ids", got.Pending, got.IncidentChoices)
	}
	if got.SummaryRequest == nil || got.SummaryRequest.ContainerID != "CONT1234" {
		t.Errorf("SummaryRequest = %+v", got.SummaryRequest)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
}

func TestStore_GetMissingAndDelete(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "nope"); err != nil || ok {
		t.Fatalf("Get(nope) ok=%v err=%v", ok, err)
	}
	if err := s.Delete(ctx, "nope"); err != nil {
		t.Fatalf("Delete(nope): %v", err)
	}

	_ = s.Put(ctx, session.New("s1", time.Now()))
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "s1"); ok {
		t.Error("session still present after Delete")
	}
}

func TestStore_Reap(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 8, 19, 12, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{3 * time.Hour, 2 * time.Hour, 10 * time.Minute} {
		sess := session.New(string(rune('a'+i)), base.Add(-age))
		if err := s.Put(ctx, sess); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	n, err := s.Reap(ctx, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if n != 2 {
		t.Errorf("reaped %d, want 2", n)
	}
	if _, ok, _ := s.Get(ctx, "c"); !ok {
		t.Error("fresh session c was reaped")
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Error("stale session a survived")
	}
}
