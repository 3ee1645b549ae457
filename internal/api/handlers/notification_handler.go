package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kwiatekh/docpanel-be/internal/auth"
	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/rs/zerolog/log"
)

// NotificationHandler handles HTTP requests for a user's notifications.
type NotificationHandler struct {
	service services.NotificationServiceProvider
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(service services.NotificationServiceProvider) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List retrieves the authenticated user's notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}

	notifications, err := h.service.GetForUser(claims.Subject)
	if err != nil {
		log.Error().Err(err).Str("username", claims.Subject).Msg("Failed to list notifications")
		serviceError(w, err)
		return
	}

	unread, err := h.service.UnreadCount(claims.Subject)
	if err != nil {
		log.Error().Err(err).Str("username", claims.Subject).Msg("Failed to count unread notifications")
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"unreadCount":   unread,
	})
}

// MarkRead marks one of the user's notifications as read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.MarkRead(id, claims.Subject); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead marks all of the user's notifications as read.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}

	if err := h.service.MarkAllRead(claims.Subject); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
