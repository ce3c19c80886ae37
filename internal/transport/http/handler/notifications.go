package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/complaint-hub/internal/application/notification"
	"github.com/complaint-hub/internal/transport/http/middleware"
)

// NotificationHandler handles the client-facing notification sync endpoints.
// The recipient is always taken from the JWT claims; ids in a request body
// that belong to someone else are excluded silently further down the stack.
type NotificationHandler struct {
	svc notification.Service
}

func NewNotificationHandler(svc notification.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// List returns the caller's notifications newest-first.
// Query params: unread=true to filter, limit=N to cap the page.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	var limit int32
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = int32(n)
		}
	}
	notifications, err := h.svc.List(r.Context(), claims.UserID, unreadOnly, limit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

// MarkRead flags the given ids (or everything, with all=true) as read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req IDSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var err error
	if req.All {
		err = h.svc.MarkAllRead(r.Context(), claims.UserID)
	} else {
		err = h.svc.MarkRead(r.Context(), claims.UserID, req.IDs)
	}
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ok"})
}

// Clear hard-deletes the given ids (or everything, with all=true).
func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req IDSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var err error
	if req.All {
		err = h.svc.ClearAll(r.Context(), claims.UserID)
	} else {
		err = h.svc.Clear(r.Context(), claims.UserID, req.IDs)
	}
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ok"})
}
