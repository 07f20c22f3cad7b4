package sqlstore

import "time"

// cmsLog mirrors the CMS processing log table shared with the order system.
type cmsLog struct {
	ID                uint64    `gorm:"primaryKey"`
	OrderID           *string   `gorm:"size:64;index"`
	ContainerID       *string   `gorm:"size:64;index"`
	Status            string    `gorm:"size:16;not null"`
	ResponseXML       *string   `gorm:"column:response_xml;type:text"`
	ResponseTimestamp time.Time `gorm:"not null;index"`
}

func (cmsLog) TableName() string { return "cms_logs" }

type knownFailure struct {
	ID          int64   `gorm:"primaryKey"`
	Pattern     *string `gorm:"type:text"`
	Workaround  string  `gorm:"type:text;not null"`
	FailureType string  `gorm:"size:128;not null"`
}

func (knownFailure) TableName() string { return "known_failures" }

type incidentLog struct {
	IncidentID   string  `gorm:"column:incident_id;primaryKey;size:64"`
	OrderID      *string `gorm:"size:64;index"`
	ContainerID  *string `gorm:"size:64;index"`
	IssueSummary string  `gorm:"type:text;not null"`
	Status       string  `gorm:"size:32;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (incidentLog) TableName() string { return "incident_logs" }

func allModels() []any {
	return []any{&cmsLog{}, &knownFailure{}, &incidentLog{}}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
