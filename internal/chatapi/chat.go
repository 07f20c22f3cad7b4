package chatapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/packassist/internal/triage"
)

type chatRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,max=128,printascii"`
	Message   string `json:"message" validate:"required,maxbytes"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

type endRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128,printascii"`
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid payload"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", jsonName(fe.Field()))
	case "maxbytes":
		return fmt.Sprintf("%s exceeds %d bytes", jsonName(fe.Field()), MaxMessageBytes)
	default:
		return fmt.Sprintf("%s is invalid", jsonName(fe.Field()))
	}
}

func jsonName(field string) string {
	switch field {
	case "SessionID":
		return "session_id"
	case "Message":
		return "message"
	}
	return field
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = a.newID()
	}

	ctx := r.Context()
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("packassist.session.id", req.SessionID))

	reply, err := a.svc.HandleTurn(ctx, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, triage.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		a.logger.Error(ctx, err, "chat turn failed", "session_id", req.SessionID)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:     "could not complete the request, please try again",
			SessionID: req.SessionID,
		})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Response: reply})
}

func (a *API) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if !a.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	if err := a.svc.EndConversation(ctx, req.SessionID); err != nil {
		a.logger.Error(ctx, err, "end conversation failed", "session_id", req.SessionID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
