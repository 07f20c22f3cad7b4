package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/packassist/internal/incident/pgstore.(*Store).LatestLog", "(*Store).LatestLog"},
		{"already short", "(*Store).LatestLog", "LatestLog"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"single segment", "foo.Bar", "Bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shortenFuncName(tt.in); got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

type recordingTracer struct {
	starts, ends int
}

func (r *recordingTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	r.starts++
	return ctx
}

func (r *recordingTracer) TraceQueryEnd(_ context.Context, _ *pgx.Conn, _ pgx.TraceQueryEndData) {
	r.ends++
}

// Not parallel: mutates the process-wide observer.
func TestQueryTracer_ObservesAndChains(t *testing.T) {
	defer SetQueryObserver(nil)

	var gotCaller, gotOutcome string
	var gotDur time.Duration
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, caller, outcome string, dur time.Duration) {
		gotCaller, gotOutcome, gotDur = caller, outcome, dur
	}))

	inner := &recordingTracer{}
	qt := newQueryTracer(inner)
	base := time.Date(2025, 8, 19, 10, 0, 0, 0, time.UTC)
	calls := 0
	qt.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 50 * time.Millisecond)
	}

	ctx := qt.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	qt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})

	if inner.starts != 1 || inner.ends != 1 {
		t.Errorf("inner tracer starts=%d ends=%d, want 1/1", inner.starts, inner.ends)
	}
	if gotOutcome != "ok" {
		t.Errorf("outcome = %q, want ok", gotOutcome)
	}
	if gotDur != 50*time.Millisecond {
		t.Errorf("dur = %v, want 50ms", gotDur)
	}
	if gotCaller == "" {
		t.Error("expected caller label, got empty")
	}
}

func TestQueryTracer_ErrorOutcome(t *testing.T) {
	defer SetQueryObserver(nil)

	var gotOutcome string
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, _, outcome string, _ time.Duration) {
		gotOutcome = outcome
	}))

	qt := newQueryTracer(nil)
	ctx := qt.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "INSERT INTO incident_logs"})
	qt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: &pgconn.PgError{Code: "23505", ConstraintName: "incident_logs_pkey"}})

	if gotOutcome != "error" {
		t.Errorf("outcome = %q, want error", gotOutcome)
	}
}

func TestQueryTracer_EndWithoutStart(t *testing.T) {
	defer SetQueryObserver(nil)

	called := false
	SetQueryObserver(QueryObserverFunc(func(context.Context, string, string, time.Duration) { called = true }))

	newQueryTracer(nil).TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	if called {
		t.Error("observer called for a query with no start state")
	}
}

func TestQueryFields_PgError(t *testing.T) {
	t.Parallel()

	st := &queryState{sql: "INSERT", caller: "(*Store).CreateIncident"}
	err := errors.Join(errors.New("wrapped"), &pgconn.PgError{Code: "23505", ConstraintName: "incident_logs_pkey"})
	fields := queryFields(st, pgx.TraceQueryEndData{Err: err}, time.Second)

	want := map[string]any{
		"db.caller":           "(*Store).CreateIncident",
		"db.error_code":       "23505",
		"db.error_constraint": "incident_logs_pkey",
	}
	got := map[string]any{}
	for i := 0; i+1 < len(fields); i += 2 {
		got[fields[i].(string)] = fields[i+1]
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}
