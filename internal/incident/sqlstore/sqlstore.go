// Package sqlstore provides a MySQL implementation of incident.Store on top
// of GORM, matching the schema the CMS already writes its logs to.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/linnemanlabs/packassist/internal/incident"
)

// Open connects to MySQL using a go-sql-driver DSN. parseTime=true is required.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect: %w", err)
	}
	return db, nil
}

// Store implements incident.Store with GORM.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New migrates the tables on db and returns a ready Store.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("sqlstore: auto-migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// LatestLog returns the newest CMS log for the order, or the container when no order is given.
func (s *Store) LatestLog(ctx context.Context, orderID, containerID string) (*incident.LogEntry, bool, error) {
	col, val := "order_id", orderID
	if orderID == "" {
		col, val = "container_id", containerID
	}
	if val == "" {
		return nil, false, nil
	}

	var row cmsLog
	err := s.db.WithContext(ctx).
		Where(col+" = ?", val).
		Order("response_timestamp DESC").Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: latest log: %w", err)
	}
	return &incident.LogEntry{
		OrderID:         deref(row.OrderID),
		ContainerID:     deref(row.ContainerID),
		Timestamp:       row.ResponseTimestamp,
		Status:          incident.LogStatus(row.Status),
		ResponsePayload: deref(row.ResponseXML),
	}, true, nil
}

// KnownFailures returns every failure pattern ordered by id.
func (s *Store) KnownFailures(ctx context.Context) ([]incident.FailurePattern, error) {
	var rows []knownFailure
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: known failures: %w", err)
	}
	out := make([]incident.FailurePattern, 0, len(rows))
	for _, r := range rows {
		out = append(out, incident.FailurePattern{
			ID:          r.ID,
			Pattern:     deref(r.Pattern),
			Workaround:  r.Workaround,
			FailureType: r.FailureType,
		})
	}
	return out, nil
}

// CreateIncident inserts a new incident row. CreatedAt defaults to now.
func (s *Store) CreateIncident(ctx context.Context, inc *incident.Incident) error {
	created := inc.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	row := incidentLog{
		IncidentID:   inc.ID,
		OrderID:      nullable(inc.OrderID),
		ContainerID:  nullable(inc.ContainerID),
		IssueSummary: inc.IssueSummary,
		Status:       string(inc.Status),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = incident.ErrDuplicateID
		}
		return fmt.Errorf("sqlstore: create incident %s: %w", inc.ID, err)
	}
	return nil
}

// UpdateIncidentStatus transitions an existing incident.
func (s *Store) UpdateIncidentStatus(ctx context.Context, id string, status incident.Status) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&incidentLog{}).
		Where("incident_id = ?", id).
		Updates(map[string]any{"status": string(status), "updated_at": s.now()})
	if res.Error != nil {
		return fmt.Errorf("sqlstore: update incident %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL reports zero affected rows when nothing changed.
	var n int64
	if err := db.Model(&incidentLog{}).Where("incident_id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("sqlstore: update incident %s: %w", id, err)
	}
	if n == 0 {
		return incident.ErrNotFound
	}
	return nil
}

// GetIncident retrieves an incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (*incident.Incident, bool, error) {
	var row incidentLog
	err := s.db.WithContext(ctx).Where("incident_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlstore: get incident %s: %w", id, err)
	}
	inc := toIncident(&row)
	return &inc, true, nil
}

// OrderExists reports whether any CMS log references the order.
func (s *Store) OrderExists(ctx context.Context, orderID string) (bool, error) {
	return s.exists(ctx, "order_id", orderID)
}

// ContainerExists reports whether any CMS log references the container.
func (s *Store) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	return s.exists(ctx, "container_id", containerID)
}

func (s *Store) exists(ctx context.Context, col, val string) (bool, error) {
	if val == "" {
		return false, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&cmsLog{}).Where(col+" = ?", val).Count(&n).Error; err != nil {
		return false, fmt.Errorf("sqlstore: %s exists: %w", col, err)
	}
	return n > 0, nil
}

// IncidentsFor returns incidents matching every non-empty identifier, newest first.
func (s *Store) IncidentsFor(ctx context.Context, orderID, containerID string) ([]incident.Incident, error) {
	q := s.db.WithContext(ctx).Model(&incidentLog{})
	if orderID != "" {
		q = q.Where("order_id = ?", orderID)
	}
	if containerID != "" {
		q = q.Where("container_id = ?", containerID)
	}
	var rows []incidentLog
	if err := q.Order("created_at DESC").Order("incident_id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: incidents for %q/%q: %w", orderID, containerID, err)
	}
	out := make([]incident.Incident, 0, len(rows))
	for i := range rows {
		out = append(out, toIncident(&rows[i]))
	}
	return out, nil
}

// PutLog inserts a CMS log row.
func (s *Store) PutLog(ctx context.Context, e *incident.LogEntry) error {
	row := cmsLog{
		OrderID:           nullable(e.OrderID),
		ContainerID:       nullable(e.ContainerID),
		Status:            string(e.Status),
		ResponseXML:       nullable(e.ResponsePayload),
		ResponseTimestamp: e.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlstore: put log: %w", err)
	}
	return nil
}

// PutKnownFailure inserts a pattern and records its assigned id on p.
func (s *Store) PutKnownFailure(ctx context.Context, p *incident.FailurePattern) error {
	row := knownFailure{
		Pattern:     nullable(p.Pattern),
		Workaround:  p.Workaround,
		FailureType: p.FailureType,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlstore: put known failure: %w", err)
	}
	p.ID = row.ID
	return nil
}

func toIncident(r *incidentLog) incident.Incident {
	return incident.Incident{
		ID:           r.IncidentID,
		OrderID:      deref(r.OrderID),
		ContainerID:  deref(r.ContainerID),
		IssueSummary: r.IssueSummary,
		Status:       incident.Status(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
