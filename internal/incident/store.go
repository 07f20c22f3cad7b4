package incident

import "context"

// Store is the persistence interface for incidents, CMS logs, and known failures.
//
// Lookups that find nothing return (nil, false, nil); only transport or
// decoding problems are errors.
type Store interface {
	// LatestLog returns the newest log for orderID, or for containerID when
	// orderID is empty.
	LatestLog(ctx context.Context, orderID, containerID string) (*LogEntry, bool, error)

	// KnownFailures returns every failure pattern in store order.
	KnownFailures(ctx context.Context) ([]FailurePattern, error)

	CreateIncident(ctx context.Context, inc *Incident) error
	UpdateIncidentStatus(ctx context.Context, id string, status Status) error
	GetIncident(ctx context.Context, id string) (*Incident, bool, error)

	OrderExists(ctx context.Context, orderID string) (bool, error)
	ContainerExists(ctx context.Context, containerID string) (bool, error)

	// IncidentsFor returns incidents matching every non-empty identifier,
	// newest first.
	IncidentsFor(ctx context.Context, orderID, containerID string) ([]Incident, error)

	PutLog(ctx context.Context, entry *LogEntry) error
	PutKnownFailure(ctx context.Context, p *FailurePattern) error
}
