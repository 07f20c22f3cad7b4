package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/packassist/internal/incident"
	"github.com/linnemanlabs/packassist/internal/triage"
)

func testEscalation() *triage.Escalation {
	return &triage.Escalation{
		Kind:        triage.EscalationWorkaroundFailed,
		Subject:     "Escalation Request: Workaround failed for ORD12345",
		Body:        "Hello IT Team,\n\nThe workaround did not help.",
		SessionID:   "sess-1",
		IncidentID:  "INC-20250819-001143",
		OrderID:     "ORD12345",
		LogStatus:   incident.LogFailure,
		LogTime:     time.Date(2025, 8, 19, 0, 10, 0, 0, time.UTC),
		Payload:     "<Error>Selected postcode is not valid/deliverable</Error>",
		FailureType: "Invalid Postcode",
	}
}

func TestSendEscalation_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.SendEscalation(context.Background(), testEscalation()); err != nil {
		t.Fatalf("SendEscalation: %v", err)
	}

	if got["text"] != "Escalation Request: Workaround failed for ORD12345" {
		t.Errorf("fallback text = %v", got["text"])
	}
	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, body, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "ORD12345") {
		t.Errorf("header text = %q, want to contain ORD12345", headerText)
	}
	if !strings.Contains(headerText, "\U0001f7e0") {
		t.Errorf("header should contain orange circle for a failed workaround")
	}

	fields := blocks[2].(map[string]any)["fields"].([]any)
	var joined []string
	for _, f := range fields {
		joined = append(joined, f.(map[string]any)["text"].(string))
	}
	all := strings.Join(joined, "\n")
	for _, want := range []string{"INC-20250819-001143", "Invalid Postcode", "failure at 2025-08-19 00:10 UTC"} {
		if !strings.Contains(all, want) {
			t.Errorf("fields missing %q:\n%s", want, all)
		}
	}
}

func TestSendEscalation_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.SendEscalation(context.Background(), &triage.Escalation{}); err != nil {
		t.Fatalf("SendEscalation with empty URL should be no-op, got: %v", err)
	}
}

func TestSendEscalation_TruncatesLongBody(t *testing.T) {
	t.Parallel()

	e := testEscalation()
	e.Body = strings.Repeat("x", 4000)

	blocks := buildMessage(e, time.Now())["blocks"].([]map[string]any)
	text := blocks[4]["text"].(map[string]any)["text"].(string)

	if len(text) > maxBodyLen {
		t.Errorf("body text length = %d, expected <= %d", len(text), maxBodyLen)
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated body to end with ...")
	}
}

func TestKindEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind triage.EscalationKind
		want string
	}{
		{triage.EscalationUnknownFailure, "\U0001f534"},
		{triage.EscalationWorkaroundFailed, "\U0001f7e0"},
		{triage.EscalationSuccessPersists, "\U0001f7e1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			if got := kindEmoji(tt.kind); got != tt.want {
				t.Errorf("kindEmoji(%q) = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("Escalation Request: Unknown failure for ORD1", "Hello IT Team", "<Error/>", "ORD1")
	f.Add("", "", "", "")
	f.Add("<@U123> mention", "*bold* _italic_ ~strike~", "```code```", "CONT9")
	f.Add("subject\x00\x01\x02", "body\nline", "payload\ttab", "O\x00RD")
	f.Add(strings.Repeat("A", 5000), strings.Repeat("x", 10000), strings.Repeat("p", 2000), "ORD-1")

	f.Fuzz(func(t *testing.T, subject, body, payload, order string) {
		e := &triage.Escalation{
			Kind:      triage.EscalationUnknownFailure,
			Subject:   subject,
			Body:      body,
			Payload:   payload,
			OrderID:   order,
			SessionID: "fuzz",
		}

		// Must not panic
		msg := buildMessage(e, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 7 {
			t.Fatalf("blocks count = %d, want 7", len(blocks))
		}
	})
}

func TestSendEscalation_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.SendEscalation(context.Background(), testEscalation())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
