// Package chatapi exposes the triage dialogue over HTTP.
package chatapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/packassist/internal/incident"
)

// MaxMessageBytes caps a single user message.
const MaxMessageBytes = 16 * 1024

// maxBodyBytes leaves room for the JSON envelope around a maximal message.
const maxBodyBytes = 2 * MaxMessageBytes

// ChatService defines the business operations chatapi needs.
type ChatService interface {
	HandleTurn(ctx context.Context, sessionID, text string) (string, error)
	EndConversation(ctx context.Context, sessionID string) error
	GetIncident(ctx context.Context, id string) (*incident.Incident, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	svc      ChatService
	validate *validator.Validate
	newID    func() string
}

// New creates a new API handler.
func New(logger log.Logger, svc ChatService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("chat service is required"))
	}
	return &API{
		logger:   logger,
		svc:      svc,
		validate: newValidator(),
		newID:    func() string { return ulid.Make().String() },
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", a.handleChat)
		r.Post("/chat/end", a.handleEnd)
		r.Get("/incidents/{id}", a.handleGetIncident)
	})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxMessageBytes
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error     string `json:"error"`
	SessionID string `json:"session_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
