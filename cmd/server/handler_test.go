package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/packassist/internal/incident"
)

type stubChat struct{}

func (stubChat) HandleTurn(_ context.Context, _, text string) (string, error) {
	return "you said " + text, nil
}

func (stubChat) EndConversation(context.Context, string) error { return nil }

func (stubChat) GetIncident(context.Context, string) (*incident.Incident, bool, error) {
	return nil, false, nil
}

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func newTestHandler(token string, metrics func(http.Handler) http.Handler) http.Handler {
	return newAPIHandler(handlerDeps{
		logger:   log.Nop(),
		chat:     stubChat{},
		apiToken: token,
		healthz:  ok,
		readyz:   ok,
		metrics:  metrics,
	})
}

func TestAPIHandler_Routes(t *testing.T) {
	t.Parallel()

	h := newTestHandler("s3cret", nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		want   int
	}{
		{"healthy is open", http.MethodGet, healthyPath, "", "", http.StatusOK},
		{"ready is open", http.MethodGet, readyPath, "", "", http.StatusOK},
		{"chat requires token", http.MethodPost, "/api/v1/chat", `{"message":"hi"}`, "", http.StatusUnauthorized},
		{"chat wrong token", http.MethodPost, "/api/v1/chat", `{"message":"hi"}`, "Bearer nope", http.StatusUnauthorized},
		{"chat with token", http.MethodPost, "/api/v1/chat", `{"message":"hi"}`, "Bearer s3cret", http.StatusOK},
		{"incident not found", http.MethodGet, "/api/v1/incidents/INC-20250101-000001", "", "Bearer s3cret", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/nope", "", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %q)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAPIHandler_ChatReply(t *testing.T) {
	t.Parallel()

	h := newTestHandler("", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"session_id":"abc","message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "you said hello") {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
}

func TestAPIHandler_MetricsWrapsStack(t *testing.T) {
	t.Parallel()

	var seen int
	h := newTestHandler("", func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen++
			next.ServeHTTP(w, r)
		})
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, healthyPath, nil))

	if seen != 1 {
		t.Errorf("metrics middleware saw %d requests, want 1", seen)
	}
}
