package handlers

import (
	"net/http"

	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/rs/zerolog/log"
)

// AnnouncementHandler serves the active announcements to users.
type AnnouncementHandler struct {
	service services.AnnouncementServiceProvider
}

// NewAnnouncementHandler creates a new AnnouncementHandler.
func NewAnnouncementHandler(service services.AnnouncementServiceProvider) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

// GetActive retrieves announcements that are active and unexpired.
func (h *AnnouncementHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	announcements, err := h.service.GetActive()
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve active announcements")
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, announcements)
}
