package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/packassist/internal/incident"
)

var _ incident.Store = (*Store)(nil)

func TestStore_LatestLog(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Date(2025, 8, 19, 10, 0, 0, 0, time.UTC)
	_ = s.PutLog(ctx, &incident.LogEntry{OrderID: "ORD1", ContainerID: "CONT9", Timestamp: base, Status: incident.LogFailure, ResponsePayload: "old"})
	_ = s.PutLog(ctx, &incident.LogEntry{OrderID: "ORD1", Timestamp: base.Add(time.Hour), Status: incident.LogSuccess, ResponsePayload: "new"})
	_ = s.PutLog(ctx, &incident.LogEntry{OrderID: "ORD2", Timestamp: base.Add(2 * time.Hour), Status: incident.LogFailure})

	got, ok, err := s.LatestLog(ctx, "ORD1", "")
	if err != nil {
		t.Fatalf("LatestLog: %v", err)
	}
	if !ok {
		t.Fatal("expected log to be found")
	}
	if got.ResponsePayload != "new" {
		t.Errorf("payload = %q, want %q", got.ResponsePayload, "new")
	}

	got, ok, _ = s.LatestLog(ctx, "", "CONT9")
	if !ok || got.ResponsePayload != "old" {
		t.Errorf("container lookup = %+v, %v; want old payload", got, ok)
	}

	if _, ok, _ := s.LatestLog(ctx, "ORD404", ""); ok {
		t.Error("expected ok=false for unknown order")
	}
	if _, ok, _ := s.LatestLog(ctx, "", ""); ok {
		t.Error("expected ok=false without identifiers")
	}
}

func TestStore_IncidentLifecycle(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	inc := &incident.Incident{ID: "INC-20250819-100000", OrderID: "ORD1", IssueSummary: "Issue with Order ORD1", Status: incident.StatusInProgress}
	if err := s.CreateIncident(ctx, inc); err != nil {
		t.Fatalf("CreateIncident: %v", err)
	}

	if err := s.UpdateIncidentStatus(ctx, inc.ID, incident.StatusEscalatedToIT); err != nil {
		t.Fatalf("UpdateIncidentStatus: %v", err)
	}

	got, ok, err := s.GetIncident(ctx, inc.ID)
	if err != nil || !ok {
		t.Fatalf("GetIncident: ok=%v err=%v", ok, err)
	}
	if got.Status != incident.StatusEscalatedToIT {
		t.Errorf("Status = %q, want %q", got.Status, incident.StatusEscalatedToIT)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to default to now")
	}

	got.Status = incident.StatusClosed
	again, _, _ := s.GetIncident(ctx, inc.ID)
	if again.Status != incident.StatusEscalatedToIT {
		t.Error("GetIncident returned a shared pointer")
	}
}

func TestStore_UpdateUnknownIncident(t *testing.T) {
	t.Parallel()

	err := New().UpdateIncidentStatus(context.Background(), "INC-missing", incident.StatusOpen)
	if !errors.Is(err, incident.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_CreateDuplicateIncident(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	first := &incident.Incident{ID: "INC-20250819-090000", OrderID: "ORD1", Status: incident.StatusEscalatedToIT}
	if err := s.CreateIncident(ctx, first); err != nil {
		t.Fatalf("CreateIncident: %v", err)
	}

	err := s.CreateIncident(ctx, &incident.Incident{ID: first.ID, OrderID: "ORD2", Status: incident.StatusInProgress})
	if !errors.Is(err, incident.ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	got, _, _ := s.GetIncident(ctx, first.ID)
	if got.OrderID != "ORD1" || got.Status != incident.StatusEscalatedToIT {
		t.Errorf("existing incident overwritten: %+v", got)
	}
}

func TestStore_IncidentsFor(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Date(2025, 8, 19, 10, 0, 0, 0, time.UTC)
	_ = s.CreateIncident(ctx, &incident.Incident{ID: "INC-A", ContainerID: "CONT1234", CreatedAt: base})
	_ = s.CreateIncident(ctx, &incident.Incident{ID: "INC-B", ContainerID: "CONT1234", OrderID: "ORD1", CreatedAt: base.Add(time.Minute)})
	_ = s.CreateIncident(ctx, &incident.Incident{ID: "INC-C", ContainerID: "CONT9", CreatedAt: base})

	got, err := s.IncidentsFor(ctx, "", "CONT1234")
	if err != nil {
		t.Fatalf("IncidentsFor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "INC-B" || got[1].ID != "INC-A" {
		t.Errorf("order = [%s %s], want newest first [INC-B INC-A]", got[0].ID, got[1].ID)
	}

	got, _ = s.IncidentsFor(ctx, "ORD1", "CONT1234")
	if len(got) != 1 || got[0].ID != "INC-B" {
		t.Errorf("AND filter = %+v, want only INC-B", got)
	}
}

func TestStore_Exists(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	_ = s.PutLog(ctx, &incident.LogEntry{OrderID: "ORD1", ContainerID: "CONT1", Timestamp: time.Now(), Status: incident.LogSuccess})

	tests := []struct {
		name string
		fn   func() (bool, error)
		want bool
	}{
		{"known order", func() (bool, error) { return s.OrderExists(ctx, "ORD1") }, true},
		{"unknown order", func() (bool, error) { return s.OrderExists(ctx, "ORD2") }, false},
		{"empty order", func() (bool, error) { return s.OrderExists(ctx, "") }, false},
		{"known container", func() (bool, error) { return s.ContainerExists(ctx, "CONT1") }, true},
		{"unknown container", func() (bool, error) { return s.ContainerExists(ctx, "CONT2") }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn()
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_KnownFailuresOrder(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	for _, ft := range []string{"a", "b", "c"} {
		if err := s.PutKnownFailure(ctx, &incident.FailurePattern{FailureType: ft, Pattern: "%" + ft + "%", Workaround: "w"}); err != nil {
			t.Fatalf("PutKnownFailure: %v", err)
		}
	}
	got, err := s.KnownFailures(ctx)
	if err != nil {
		t.Fatalf("KnownFailures: %v", err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].FailureType != want || got[i].ID != int64(i+1) {
			t.Errorf("patterns[%d] = %+v, want type %q id %d", i, got[i], want, i+1)
		}
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("INC-%d", i)
			_ = s.CreateIncident(ctx, &incident.Incident{ID: id, OrderID: "ORD1", Status: incident.StatusInProgress})
			_ = s.UpdateIncidentStatus(ctx, id, incident.StatusOpen)
			_, _, _ = s.GetIncident(ctx, id)
			_, _ = s.IncidentsFor(ctx, "ORD1", "")
		}(i)
	}
	wg.Wait()

	got, _ := s.IncidentsFor(ctx, "ORD1", "")
	if len(got) != 50 {
		t.Errorf("incidents = %d, want 50", len(got))
	}
}
