// Package pgstore provides a PostgreSQL implementation of incident.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/packassist/internal/incident"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

var tracer = otel.Tracer("github.com/linnemanlabs/packassist/internal/incident/pgstore")

//go:embed schema.sql
var schema string

// Store persists incidents and reads CMS logs and known failures from PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New applies the schema on pool and returns a ready Store. The caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pgstore."+name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// LatestLog returns the newest CMS log for the order, or the container when no order is given.
func (s *Store) LatestLog(ctx context.Context, orderID, containerID string) (*incident.LogEntry, bool, error) {
	ctx, span := startSpan(ctx, "LatestLog", "SELECT")
	defer span.End()

	col, val := "order_id", orderID
	if orderID == "" {
		col, val = "container_id", containerID
	}
	if val == "" {
		return nil, false, nil
	}

	query := `SELECT COALESCE(order_id, ''), COALESCE(container_id, ''), status,
		COALESCE(response_xml, ''), response_timestamp
		FROM cms_logs WHERE ` + col + ` = $1
		ORDER BY response_timestamp DESC, id DESC LIMIT 1`

	var e incident.LogEntry
	var status string
	err := s.pool.QueryRow(ctx, query, val).Scan(&e.OrderID, &e.ContainerID, &status, &e.ResponsePayload, &e.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("select latest log: %w", err))
	}
	e.Status = incident.LogStatus(status)
	return &e, true, nil
}

// KnownFailures returns every failure pattern ordered by id.
func (s *Store) KnownFailures(ctx context.Context) ([]incident.FailurePattern, error) {
	ctx, span := startSpan(ctx, "KnownFailures", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT id, COALESCE(pattern, ''), workaround, failure_type FROM known_failures ORDER BY id`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("select known failures: %w", err))
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (incident.FailurePattern, error) {
		var p incident.FailurePattern
		err := row.Scan(&p.ID, &p.Pattern, &p.Workaround, &p.FailureType)
		return p, err
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("scan known failures: %w", err))
	}
	return out, nil
}

// CreateIncident inserts a new incident row. CreatedAt defaults to now.
func (s *Store) CreateIncident(ctx context.Context, inc *incident.Incident) error {
	ctx, span := startSpan(ctx, "CreateIncident", "INSERT")
	defer span.End()
	span.SetAttributes(attribute.String("incident.id", inc.ID))

	created := inc.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO incident_logs (incident_id, order_id, container_id, issue_summary, status, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $6)`,
		inc.ID, inc.OrderID, inc.ContainerID, inc.IssueSummary, string(inc.Status), created,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = incident.ErrDuplicateID
		}
		return fail(span, fmt.Errorf("insert incident %s: %w", inc.ID, err))
	}
	return nil
}

// UpdateIncidentStatus transitions an existing incident.
func (s *Store) UpdateIncidentStatus(ctx context.Context, id string, status incident.Status) error {
	ctx, span := startSpan(ctx, "UpdateIncidentStatus", "UPDATE")
	defer span.End()
	span.SetAttributes(attribute.String("incident.id", id), attribute.String("incident.status", string(status)))

	tag, err := s.pool.Exec(ctx,
		`UPDATE incident_logs SET status = $2, updated_at = $3 WHERE incident_id = $1`,
		id, string(status), s.now(),
	)
	if err != nil {
		return fail(span, fmt.Errorf("update incident: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fail(span, incident.ErrNotFound)
	}
	return nil
}

const incidentColumns = `incident_id, COALESCE(order_id, ''), COALESCE(container_id, ''),
	issue_summary, status, created_at, updated_at`

func scanIncident(row pgx.Row) (incident.Incident, error) {
	var inc incident.Incident
	var status string
	err := row.Scan(&inc.ID, &inc.OrderID, &inc.ContainerID, &inc.IssueSummary, &status, &inc.CreatedAt, &inc.UpdatedAt)
	inc.Status = incident.Status(status)
	return inc, err
}

// GetIncident retrieves an incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (*incident.Incident, bool, error) {
	ctx, span := startSpan(ctx, "GetIncident", "SELECT")
	defer span.End()

	inc, err := scanIncident(s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incident_logs WHERE incident_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fail(span, fmt.Errorf("select incident: %w", err))
	}
	return &inc, true, nil
}

// OrderExists reports whether any CMS log references the order.
func (s *Store) OrderExists(ctx context.Context, orderID string) (bool, error) {
	return s.exists(ctx, "OrderExists", "order_id", orderID)
}

// ContainerExists reports whether any CMS log references the container.
func (s *Store) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	return s.exists(ctx, "ContainerExists", "container_id", containerID)
}

func (s *Store) exists(ctx context.Context, name, col, val string) (bool, error) {
	if val == "" {
		return false, nil
	}
	ctx, span := startSpan(ctx, name, "SELECT")
	defer span.End()

	var ok bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM cms_logs WHERE `+col+` = $1)`, val).Scan(&ok); err != nil {
		return false, fail(span, fmt.Errorf("select %s: %w", col, err))
	}
	return ok, nil
}

// IncidentsFor returns incidents matching every non-empty identifier, newest first.
func (s *Store) IncidentsFor(ctx context.Context, orderID, containerID string) ([]incident.Incident, error) {
	ctx, span := startSpan(ctx, "IncidentsFor", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+incidentColumns+` FROM incident_logs
		 WHERE ($1 = '' OR order_id = $1) AND ($2 = '' OR container_id = $2)
		 ORDER BY created_at DESC, incident_id DESC`,
		orderID, containerID,
	)
	if err != nil {
		return nil, fail(span, fmt.Errorf("select incidents: %w", err))
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (incident.Incident, error) {
		return scanIncident(row)
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("scan incidents: %w", err))
	}
	return out, nil
}

// PutLog inserts a CMS log row.
func (s *Store) PutLog(ctx context.Context, e *incident.LogEntry) error {
	ctx, span := startSpan(ctx, "PutLog", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO cms_logs (order_id, container_id, status, response_xml, response_timestamp)
		 VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, NULLIF($4, ''), $5)`,
		e.OrderID, e.ContainerID, string(e.Status), e.ResponsePayload, e.Timestamp,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert cms log: %w", err))
	}
	return nil
}

// PutKnownFailure inserts a pattern and records its assigned id on p.
func (s *Store) PutKnownFailure(ctx context.Context, p *incident.FailurePattern) error {
	ctx, span := startSpan(ctx, "PutKnownFailure", "INSERT")
	defer span.End()

	err := s.pool.QueryRow(ctx,
		`INSERT INTO known_failures (pattern, workaround, failure_type)
		 VALUES (NULLIF($1, ''), $2, $3) RETURNING id`,
		p.Pattern, p.Workaround, p.FailureType,
	).Scan(&p.ID)
	if err != nil {
		return fail(span, fmt.Errorf("insert known failure: %w", err))
	}
	return nil
}
