package chatapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (a *API) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("packassist.incident.id", id))

	inc, ok, err := a.svc.GetIncident(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get incident", "incident_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	span.SetAttributes(attribute.String("packassist.incident.status", string(inc.Status)))
	writeJSON(w, http.StatusOK, inc)
}
