package triage

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/packassist/internal/incident"
	"github.com/linnemanlabs/packassist/internal/session"
)

// ControllerDeps are the collaborators a Controller drives.
type ControllerDeps struct {
	Store    incident.Store
	Catalog  *incident.Catalog
	Oracle   *Oracle
	Notifier Notifier
	IDs      *incident.IDGenerator
	Hooks    Hooks
	Logger   log.Logger
}

// Controller is the per-turn dialogue state machine.
type Controller struct {
	store      incident.Store
	catalog    *incident.Catalog
	resolver   *Resolver
	interp     *Interpreter
	oracle     *Oracle
	replies    replies
	lifecycle  *Lifecycle
	summarizer *Summarizer
	notifier   Notifier
	hooks      Hooks
	logger     log.Logger
}

func NewController(d ControllerDeps) *Controller {
	return &Controller{
		store:      d.Store,
		catalog:    d.Catalog,
		resolver:   NewResolver(d.Oracle),
		interp:     NewInterpreter(d.Oracle),
		oracle:     d.Oracle,
		replies:    replies{oracle: d.Oracle},
		lifecycle:  NewLifecycle(d.Store, d.IDs, d.Hooks),
		summarizer: NewSummarizer(d.Store, d.Catalog, d.Oracle),
		notifier:   d.Notifier,
		hooks:      d.Hooks,
		logger:     d.Logger,
	}
}

// Process handles one user message. It never mutates in; the returned
// session carries every change. On error the returned session still
// reflects the side effects that committed before the failure.
func (c *Controller) Process(ctx context.Context, text string, in *session.Session) (string, *session.Session, error) {
	s := in.Clone()
	s.LastUserMessage = text

	ids := c.resolver.Extract(ctx, text)
	ids.MergeInto(s)

	intent := c.intent(ctx, text, ids, s)
	s.LastIntent = string(intent)

	switch s.Pending {
	case session.SummaryScope:
		return c.onSummaryScope(ctx, s, text, ids)
	case session.IncidentChoice:
		return c.onIncidentChoice(ctx, s, ids)
	case session.SuccessConfirm:
		return c.onSuccessConfirm(ctx, s, text)
	case session.WorkaroundConfirm:
		return c.onWorkaroundConfirm(ctx, s, text)
	}

	// A carried mismatch only survives a turn that answers it.
	if intent == IntentNewIssue || (intent != IntentSummary && !s.SummaryRequest.AwaitingIDs()) {
		s.SummaryRequest = nil
	}
	toSummary := intent == IntentSummary || s.SummaryRequest != nil

	// Summaries look incidents up without making them the active issue.
	if !toSummary {
		if err := c.adoptIncident(ctx, s, ids.IncidentID); err != nil {
			return "", s, err
		}
	}

	switch {
	case intent == IntentGreeting && s.IncidentID == "":
		return c.replies.greeting(ctx, text), s, nil
	case intent == IntentThanks || intent == IntentEndOfConvo:
		return c.replies.thanks(ctx, text), s, nil
	case toSummary:
		return c.onSummary(ctx, s, in, ids, intent)
	case intent == IntentNewIssue && s.Status.AllowsNewIssue():
		if err := c.resetForNewIssue(ctx, s, ids); err != nil {
			return "", s, err
		}
	}
	return c.triage(ctx, s, text)
}

// intent reuses the previous intent when the user only sent an identifier,
// which is usually an answer to our own question.
func (c *Controller) intent(ctx context.Context, text string, ids Identifiers, s *session.Session) Intent {
	if ids.IsOnly(text) {
		in, _ := ParseIntent(s.LastIntent)
		return in
	}
	in, err := c.oracle.ClassifyIntent(ctx, text)
	if err != nil {
		c.oracle.fallback(ctx, OpClassifyIntent, err)
		return IntentNormal
	}
	return in
}

// adoptIncident attaches an existing incident named in the message to a
// session that has none. Unknown ids are ignored.
func (c *Controller) adoptIncident(ctx context.Context, s *session.Session, id string) error {
	if id == "" || s.IncidentID != "" {
		return nil
	}
	inc, ok, err := c.store.GetIncident(ctx, id)
	if err != nil {
		return fmt.Errorf("look up incident %s: %w", id, err)
	}
	if !ok {
		return nil
	}
	s.IncidentID = inc.ID
	if s.Status == incident.StatusNone {
		s.Status = inc.Status
	}
	return nil
}

func (c *Controller) resetForNewIssue(ctx context.Context, s *session.Session, ids Identifiers) error {
	msg, intent := s.LastUserMessage, s.LastIntent
	s.Reset()
	s.LastUserMessage, s.LastIntent = msg, intent
	ids.MergeInto(s)
	return c.adoptIncident(ctx, s, ids.IncidentID)
}

// triage is the default flow: look up the latest CMS log and either ask for
// confirmation, suggest a workaround, or escalate.
func (c *Controller) triage(ctx context.Context, s *session.Session, text string) (string, *session.Session, error) {
	if !s.HasIdentifier() {
		return c.replies.missingID(ctx, text), s, nil
	}

	entry, err := c.latestLog(ctx, s)
	if err != nil {
		return "", s, err
	}
	if entry == nil {
		kind, id := identifierOf(s)
		return noActivityReply(kind, id), s, nil
	}

	created, err := c.lifecycle.Ensure(ctx, s)
	if err != nil {
		return "", s, err
	}
	L := c.logger.With("session_id", s.ID, "incident_id", s.IncidentID)
	if created {
		L.Info(ctx, "incident created", "order_id", s.OrderID, "container_id", s.ContainerID)
	} else if err := c.lifecycle.Transition(ctx, s, incident.StatusInProgress); err != nil {
		return "", s, err
	}

	if entry.Status == incident.LogSuccess {
		s.Await(session.SuccessConfirm)
		kind, id := identifierOf(s)
		return successConfirmPrompt(kind, id, entry.Timestamp), s, nil
	}

	fp, matched, err := c.catalog.Match(ctx, entry.ResponsePayload)
	if err != nil {
		return "", s, err
	}
	if matched {
		L.Info(ctx, "known failure matched", "failure_type", fp.FailureType)
		s.Await(session.WorkaroundConfirm)
		return c.replies.workaround(ctx, text, fp), s, nil
	}
	return c.escalate(ctx, s, EscalationUnknownFailure, text, entry, nil)
}

func (c *Controller) onSuccessConfirm(ctx context.Context, s *session.Session, text string) (string, *session.Session, error) {
	switch c.interp.Interpret(ctx, text, QuestionStillBroken) {
	case Persists:
		entry, err := c.latestLog(ctx, s)
		if err != nil {
			return "", s, err
		}
		return c.escalate(ctx, s, EscalationSuccessPersists, text, entry, nil)
	case Resolved:
		if s.IncidentID != "" {
			if err := c.lifecycle.Transition(ctx, s, incident.StatusClosed); err != nil {
				return "", s, err
			}
		}
		s.Status = incident.StatusClosed
		s.ClearPending()
		return closedReply(s.IncidentID), s, nil
	default:
		return rePromptStillBroken(), s, nil
	}
}

func (c *Controller) onWorkaroundConfirm(ctx context.Context, s *session.Session, text string) (string, *session.Session, error) {
	switch c.interp.Interpret(ctx, text, QuestionWorkaroundWorked) {
	case Resolved:
		if err := c.lifecycle.Transition(ctx, s, incident.StatusResolved); err != nil {
			return "", s, err
		}
		s.ClearPending()
		return resolvedReply(s.IncidentID), s, nil
	case Persists:
		entry, err := c.latestLog(ctx, s)
		if err != nil {
			return "", s, err
		}
		var fp *incident.FailurePattern
		if entry != nil {
			if fp, _, err = c.catalog.Match(ctx, entry.ResponsePayload); err != nil {
				return "", s, err
			}
		}
		return c.escalate(ctx, s, EscalationWorkaroundFailed, text, entry, fp)
	default:
		return rePromptWorkaround(), s, nil
	}
}

// escalate notifies the IT team and marks the incident EscalatedToIT. When
// the user reported the problem persisting, the incident is reopened first.
// A failed send leaves the pending confirmation in place so a retry re-sends.
func (c *Controller) escalate(ctx context.Context, s *session.Session, kind EscalationKind, text string, entry *incident.LogEntry, fp *incident.FailurePattern) (string, *session.Session, error) {
	if _, err := c.lifecycle.Ensure(ctx, s); err != nil {
		return "", s, err
	}
	if kind != EscalationUnknownFailure {
		if err := c.lifecycle.Transition(ctx, s, incident.StatusOpen); err != nil {
			return "", s, err
		}
	}

	e := &Escalation{
		Kind:        kind,
		SessionID:   s.ID,
		IncidentID:  s.IncidentID,
		OrderID:     s.OrderID,
		ContainerID: s.ContainerID,
		UserMessage: text,
	}
	if entry != nil {
		e.LogStatus = entry.Status
		e.LogTime = entry.Timestamp
		e.Payload = entry.ResponsePayload
	}
	if fp != nil {
		e.FailureType = fp.FailureType
		e.Workaround = fp.Workaround
	}
	e.Subject = escalationSubject(kind, e.Identifier())
	e.Body = c.replies.escalationBody(ctx, e)

	L := c.logger.With("session_id", s.ID, "incident_id", s.IncidentID, "kind", string(kind))
	err := c.notifier.SendEscalation(ctx, e)
	c.hooks.escalation(kind, err)
	if err != nil {
		L.Error(ctx, err, "escalation send failed")
		return "", s, fmt.Errorf("send escalation for %s: %w", s.IncidentID, err)
	}

	if err := c.lifecycle.Transition(ctx, s, incident.StatusEscalatedToIT); err != nil {
		return "", s, err
	}
	s.ClearPending()
	L.Info(ctx, "incident escalated")
	return escalatedReply(s.IncidentID, e.Body), s, nil
}

// onSummary answers a summary request. prev is the session as it was before
// this turn; a mismatch puts the identifiers back to it.
func (c *Controller) onSummary(ctx context.Context, s, prev *session.Session, ids Identifiers, intent Intent) (string, *session.Session, error) {
	carried := s.SummaryRequest
	if intent == IntentSummary && carried == nil && ids.Empty() && s.IncidentID != "" {
		s.Await(session.SummaryScope)
		return summaryScopePrompt(s.IncidentID), s, nil
	}

	req := ids
	// Any identifier in the answer replaces the carried request outright.
	if carried != nil && ids.Empty() {
		req = Identifiers{IncidentID: carried.IncidentID, OrderID: carried.OrderID, ContainerID: carried.ContainerID}
	}
	reply, s, err := c.summarize(ctx, s, req)
	if err != nil {
		return "", s, err
	}
	if s.SummaryRequest != nil && s.SummaryRequest.IncidentID != "" {
		s.OrderID, s.ContainerID = prev.OrderID, prev.ContainerID
	}
	return reply, s, nil
}

// summarize runs a summary request. A request without identifiers is kept
// on the session so the user's next message can complete it.
func (c *Controller) summarize(ctx context.Context, s *session.Session, req Identifiers) (string, *session.Session, error) {
	if req.Empty() {
		s.SummaryRequest = &session.SummaryRequest{}
	} else {
		s.SummaryRequest = nil
	}
	reply, err := c.summarizer.Summarize(ctx, s, req)
	if err != nil {
		return "", s, err
	}
	return reply, s, nil
}

func (c *Controller) onSummaryScope(ctx context.Context, s *session.Session, text string, ids Identifiers) (string, *session.Session, error) {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "current"):
		s.ClearPending()
		return c.summarize(ctx, s, Identifiers{IncidentID: s.IncidentID})
	case strings.Contains(t, "new"):
		s.ClearPending()
		return c.summarize(ctx, s, ids)
	default:
		return summaryScopePrompt(s.IncidentID), s, nil
	}
}

func (c *Controller) onIncidentChoice(ctx context.Context, s *session.Session, ids Identifiers) (string, *session.Session, error) {
	choices := s.PendingIncidentChoice()
	if ids.IncidentID == "" || !slices.Contains(choices, ids.IncidentID) {
		return incidentChoicePrompt(choices), s, nil
	}
	s.ClearPending()
	s.IncidentID = ids.IncidentID
	inc, ok, err := c.store.GetIncident(ctx, ids.IncidentID)
	if err != nil {
		return "", s, fmt.Errorf("look up incident %s: %w", ids.IncidentID, err)
	}
	if ok {
		s.Status = inc.Status
	}
	return c.summarize(ctx, s, Identifiers{IncidentID: ids.IncidentID})
}

func (c *Controller) latestLog(ctx context.Context, s *session.Session) (*incident.LogEntry, error) {
	entry, ok, err := c.store.LatestLog(ctx, s.OrderID, s.ContainerID)
	if err != nil {
		return nil, fmt.Errorf("latest log: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return entry, nil
}

// identifierOf names the identifier log lookups use: the order when known.
func identifierOf(s *session.Session) (kind, id string) {
	if s.OrderID != "" {
		return "order", s.OrderID
	}
	return "container", s.ContainerID
}
