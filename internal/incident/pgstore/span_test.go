package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/packassist/internal/incident"
)

func TestCreateIncident_RecordsFailedSpan(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	// Pools connect lazily, so nothing listens on port 1 until the insert runs.
	pool, err := pgxpool.New(context.Background(), "postgres://packassist@127.0.0.1:1/packassist?connect_timeout=1")
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	defer pool.Close()
	s := &Store{pool: pool, now: time.Now}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = s.CreateIncident(ctx, &incident.Incident{ID: "INC-20250819-090000", OrderID: "ORD1", Status: incident.StatusInProgress})
	if err == nil {
		t.Fatal("CreateIncident succeeded without a database")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	sp := spans[0]
	if sp.Name != "pgstore.CreateIncident" {
		t.Errorf("span name = %q, want pgstore.CreateIncident", sp.Name)
	}
	if sp.Status.Code != codes.Error {
		t.Errorf("span status = %v, want Error", sp.Status.Code)
	}

	want := map[attribute.Key]string{
		"db.system":         "postgresql",
		"db.operation.name": "INSERT",
		"incident.id":       "INC-20250819-090000",
	}
	got := make(map[attribute.Key]string)
	for _, kv := range sp.Attributes {
		got[kv.Key] = kv.Value.Emit()
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("attribute %s = %q, want %q", k, got[k], v)
		}
	}

	var recorded bool
	for _, ev := range sp.Events {
		if ev.Name == "exception" {
			recorded = true
		}
	}
	if !recorded {
		t.Error("expected the error to be recorded as a span event")
	}
}
