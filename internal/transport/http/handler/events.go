package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/complaint-hub/internal/domain"
	"github.com/complaint-hub/internal/transport/http/middleware"
)

// Dispatcher is the delivery core's single entry point.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) error
}

// EventHandler accepts domain events from the surrounding application's
// business handlers (complaint created, comment added, status changed).
// Delivery problems are logged, never returned: the business action that
// produced the event has already succeeded.
type EventHandler struct {
	dispatcher Dispatcher
}

func NewEventHandler(d Dispatcher) *EventHandler { return &EventHandler{dispatcher: d} }

func (h *EventHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.Type == "" || ev.SubjectID == "" || (ev.TargetUser == "" && ev.TargetRole == "") {
		writeError(w, http.StatusBadRequest, "type, subject_id and a target are required")
		return
	}
	if ev.ActorUserID == "" {
		ev.ActorUserID = claims.UserID
	}
	if err := h.dispatcher.Dispatch(r.Context(), ev); err != nil {
		slog.Warn("event delivery incomplete",
			"type", ev.Type, "subject_id", ev.SubjectID, "err", err)
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "accepted"})
}
