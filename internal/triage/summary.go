package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/packassist/internal/incident"
	"github.com/linnemanlabs/packassist/internal/session"
)

// SummaryFacts are the selected facts a status summary is phrased from.
type SummaryFacts struct {
	IncidentID        string `json:"incident_id,omitempty"`
	IncidentStatus    string `json:"incident_status,omitempty"`
	IncidentCreatedAt string `json:"incident_created_at,omitempty"`
	IssueSummary      string `json:"issue_summary,omitempty"`
	OrderID           string `json:"order_id,omitempty"`
	ContainerID       string `json:"container_id,omitempty"`
	CMSLastStatus     string `json:"cms_last_status,omitempty"`
	CMSLastTime       string `json:"cms_last_time,omitempty"`
	FailureType       string `json:"failure_type,omitempty"`
	Workaround        string `json:"workaround,omitempty"`
}

func (f *SummaryFacts) template() string {
	var lines []string
	add := func(label, v string) {
		if v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	add("Incident", f.IncidentID)
	add("Status", f.IncidentStatus)
	add("Opened", f.IncidentCreatedAt)
	add("Summary", f.IssueSummary)
	add("Order", f.OrderID)
	add("Container", f.ContainerID)
	if f.CMSLastStatus != "" {
		add("Latest CMS status", strings.TrimSpace(f.CMSLastStatus+" "+f.CMSLastTime))
	}
	if f.FailureType != "" {
		add("Known issue", f.FailureType)
		add("Workaround", f.Workaround)
	}
	return strings.Join(lines, "\n")
}

// NoticeKind distinguishes the two lookup problems the user is told about.
type NoticeKind string

const (
	NoticeNotFound NoticeKind = "notfound"
	NoticeMismatch NoticeKind = "mismatch"
)

// Notice describes an identifier that could not be found or that conflicts
// with the incident it was supplied alongside.
type Notice struct {
	Kind                NoticeKind `json:"type"`
	IncidentID          string     `json:"incident_id,omitempty"`
	OrderID             string     `json:"provided_order_id,omitempty"`
	ContainerID         string     `json:"provided_container_id,omitempty"`
	IncidentOrderID     string     `json:"incident_order_id,omitempty"`
	IncidentContainerID string     `json:"incident_container_id,omitempty"`
}

func (n *Notice) template() string {
	if n.Kind == NoticeMismatch {
		var parts []string
		if n.OrderID != "" {
			parts = append(parts, fmt.Sprintf("order %s (the incident is for order %s)", n.OrderID, orNone(n.IncidentOrderID)))
		}
		if n.ContainerID != "" {
			parts = append(parts, fmt.Sprintf("container %s (the incident is for container %s)", n.ContainerID, orNone(n.IncidentContainerID)))
		}
		return fmt.Sprintf("Incident %s doesn't match %s. Which one should I use?", n.IncidentID, strings.Join(parts, " or "))
	}
	var what []string
	if n.IncidentID != "" {
		what = append(what, "incident "+n.IncidentID)
	}
	if n.OrderID != "" {
		what = append(what, "order "+n.OrderID)
	}
	if n.ContainerID != "" {
		what = append(what, "container "+n.ContainerID)
	}
	return fmt.Sprintf("I couldn't find anything for %s. Please recheck the ID or share another one.", strings.Join(what, " / "))
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// Summarizer resolves a summary request to a single incident.
type Summarizer struct {
	store   incident.Store
	catalog *incident.Catalog
	replies replies
}

func NewSummarizer(store incident.Store, catalog *incident.Catalog, oracle *Oracle) *Summarizer {
	return &Summarizer{store: store, catalog: catalog, replies: replies{oracle: oracle}}
}

// Summarize answers a summary request for ids. When several incidents match
// it leaves the session waiting for an incident choice, and on a mismatch it
// carries the incident id as the session's SummaryRequest. The incident is
// never made the session's active issue here.
func (sm *Summarizer) Summarize(ctx context.Context, s *session.Session, ids Identifiers) (string, error) {
	switch {
	case ids.Empty():
		return sm.replies.missingSummaryIDs(ctx, s.LastUserMessage), nil
	case ids.IncidentID != "":
		return sm.byIncident(ctx, s, ids)
	default:
		return sm.byOrderOrContainer(ctx, s, ids)
	}
}

func (sm *Summarizer) byIncident(ctx context.Context, s *session.Session, ids Identifiers) (string, error) {
	inc, ok, err := sm.store.GetIncident(ctx, ids.IncidentID)
	if err != nil {
		return "", fmt.Errorf("get incident %s: %w", ids.IncidentID, err)
	}
	if !ok {
		return sm.replies.notice(ctx, &Notice{Kind: NoticeNotFound, IncidentID: ids.IncidentID}), nil
	}

	orderConflict := ids.OrderID != "" && ids.OrderID != inc.OrderID
	containerConflict := ids.ContainerID != "" && ids.ContainerID != inc.ContainerID
	if orderConflict || containerConflict {
		n := &Notice{
			Kind:                NoticeMismatch,
			IncidentID:          inc.ID,
			IncidentOrderID:     inc.OrderID,
			IncidentContainerID: inc.ContainerID,
		}
		if orderConflict {
			n.OrderID = ids.OrderID
		}
		if containerConflict {
			n.ContainerID = ids.ContainerID
		}
		// Kept for a follow-up that names no identifier of its own.
		s.SummaryRequest = &session.SummaryRequest{IncidentID: inc.ID}
		return sm.replies.notice(ctx, n), nil
	}
	return sm.summarizeIncident(ctx, inc)
}

func (sm *Summarizer) byOrderOrContainer(ctx context.Context, s *session.Session, ids Identifiers) (string, error) {
	notFound := &Notice{Kind: NoticeNotFound, OrderID: ids.OrderID, ContainerID: ids.ContainerID}

	if ids.OrderID != "" {
		ok, err := sm.store.OrderExists(ctx, ids.OrderID)
		if err != nil {
			return "", fmt.Errorf("check order %s: %w", ids.OrderID, err)
		}
		if !ok {
			return sm.replies.notice(ctx, notFound), nil
		}
	}
	if ids.ContainerID != "" {
		ok, err := sm.store.ContainerExists(ctx, ids.ContainerID)
		if err != nil {
			return "", fmt.Errorf("check container %s: %w", ids.ContainerID, err)
		}
		if !ok {
			return sm.replies.notice(ctx, notFound), nil
		}
	}

	incs, err := sm.store.IncidentsFor(ctx, ids.OrderID, ids.ContainerID)
	if err != nil {
		return "", fmt.Errorf("list incidents: %w", err)
	}
	switch len(incs) {
	case 0:
		return sm.replies.notice(ctx, notFound), nil
	case 1:
		return sm.summarizeIncident(ctx, &incs[0])
	}

	choices := make([]string, len(incs))
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d incidents for %s:\n", len(incs), describeIDs(ids))
	for i := range incs {
		choices[i] = incs[i].ID
		fmt.Fprintf(&b, "- %s (%s, created %s)\n", incs[i].ID, incs[i].Status, incs[i].CreatedAt.UTC().Format(time.DateTime))
	}
	b.WriteString(incidentChoicePrompt(choices))
	s.AwaitIncidentChoice(choices)
	return b.String(), nil
}

func (sm *Summarizer) summarizeIncident(ctx context.Context, inc *incident.Incident) (string, error) {
	f := &SummaryFacts{
		IncidentID:        inc.ID,
		IncidentStatus:    string(inc.Status),
		IncidentCreatedAt: inc.CreatedAt.UTC().Format(time.DateTime),
		IssueSummary:      inc.IssueSummary,
		OrderID:           inc.OrderID,
		ContainerID:       inc.ContainerID,
	}

	if inc.OrderID != "" || inc.ContainerID != "" {
		entry, ok, err := sm.store.LatestLog(ctx, inc.OrderID, inc.ContainerID)
		if err != nil {
			return "", fmt.Errorf("latest log for %s: %w", inc.ID, err)
		}
		if ok {
			f.CMSLastStatus = string(entry.Status)
			f.CMSLastTime = entry.Timestamp.UTC().Format(time.DateTime)
			if entry.Status == incident.LogFailure {
				fp, matched, err := sm.catalog.Match(ctx, entry.ResponsePayload)
				if err != nil {
					return "", fmt.Errorf("match failure for %s: %w", inc.ID, err)
				}
				if matched {
					f.FailureType = fp.FailureType
					f.Workaround = fp.Workaround
				}
			}
		}
	}
	return sm.replies.summary(ctx, f), nil
}

func describeIDs(ids Identifiers) string {
	switch {
	case ids.OrderID != "" && ids.ContainerID != "":
		return fmt.Sprintf("order %s and container %s", ids.OrderID, ids.ContainerID)
	case ids.OrderID != "":
		return "order " + ids.OrderID
	default:
		return "container " + ids.ContainerID
	}
}
