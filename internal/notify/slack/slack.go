// Package slack posts escalations to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/packassist/internal/triage"
)

const (
	maxBodyLen    = 3000
	maxPayloadLen = 500
	httpTimeout   = 10 * time.Second
)

// Notifier sends escalations to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// New creates a new Slack notifier. If webhookURL is empty, SendEscalation is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		now:        time.Now,
	}
}

// SendEscalation posts the escalation to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) SendEscalation(ctx context.Context, e *triage.Escalation) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(e, n.now()))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(e *triage.Escalation, at time.Time) map[string]any {
	return map[string]any{
		"text": e.Subject,
		"blocks": []map[string]any{
			headerBlock(e),
			{"type": "divider"},
			fieldsBlock(e),
			{"type": "divider"},
			bodyBlock(e),
			{"type": "divider"},
			contextBlock(e, at),
		},
	}
}

func headerBlock(e *triage.Escalation) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s", kindEmoji(e.Kind), e.Subject),
		},
	}
}

func fieldsBlock(e *triage.Escalation) map[string]any {
	field := func(label, value string) map[string]any {
		if value == "" {
			value = "-"
		}
		return map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*%s:* %s", label, value)}
	}

	cms := string(e.LogStatus)
	if !e.LogTime.IsZero() {
		cms += " at " + e.LogTime.UTC().Format("2006-01-02 15:04 UTC")
	}
	fields := []map[string]any{
		field("Incident", e.IncidentID),
		field("Reason", string(e.Kind)),
		field("Order", e.OrderID),
		field("Container", e.ContainerID),
		field("CMS status", cms),
	}
	if e.FailureType != "" {
		fields = append(fields, field("Known issue", e.FailureType))
	}
	if e.Payload != "" {
		fields = append(fields, field("CMS response", "`"+truncate(e.Payload, maxPayloadLen)+"`"))
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func bodyBlock(e *triage.Escalation) map[string]any {
	text := truncate(e.Body, maxBodyLen)
	if text == "" {
		text = "_No message body._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": text,
		},
	}
}

func contextBlock(e *triage.Escalation, at time.Time) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("packassist • session %s • %s", e.SessionID, at.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func kindEmoji(kind triage.EscalationKind) string {
	switch kind {
	case triage.EscalationUnknownFailure:
		return "\U0001f534" // red circle
	case triage.EscalationWorkaroundFailed:
		return "\U0001f7e0" // orange circle
	default:
		return "\U0001f7e1" // yellow circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
