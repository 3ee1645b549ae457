package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kwiatekh/docpanel-be/internal/auth"
	"github.com/kwiatekh/docpanel-be/internal/monitoring"
	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/rs/zerolog/log"
)

// AdminHandler handles the admin panel API: admin login, access keys,
// user management, announcements and statistics.
type AdminHandler struct {
	sessions      *auth.Service
	keys          services.AccessKeyServiceProvider
	users         services.UserServiceProvider
	files         services.FileServiceProvider
	announcements services.AnnouncementServiceProvider
	audit         services.AuditServiceProvider
	secureCookies bool
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sessions *auth.Service, keys services.AccessKeyServiceProvider, users services.UserServiceProvider, files services.FileServiceProvider, announcements services.AnnouncementServiceProvider, audit services.AuditServiceProvider, secureCookies bool) *AdminHandler {
	return &AdminHandler{
		sessions:      sessions,
		keys:          keys,
		users:         users,
		files:         files,
		announcements: announcements,
		audit:         audit,
		secureCookies: secureCookies,
	}
}

// Login authenticates against the configured admin credentials and issues
// an admin-domain session token.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.sessions.CheckAdminCredentials(payload.Username, payload.Password); err != nil {
		h.audit.Record("admin.login.fail", "warn", "Admin login rejected", nil)
		serviceError(w, err)
		return
	}

	token, err := h.sessions.MintAdminToken()
	if err != nil {
		log.Error().Err(err).Msg("Failed to mint admin session token")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	h.audit.Record("admin.login", "info", "Admin logged in", nil)
	setSessionCookie(w, token, h.secureCookies)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Logout clears the session cookie.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Path:     "/",
	})
	w.WriteHeader(http.StatusNoContent)
}

// ListKeys retrieves every access key.
func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.GetAll()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list access keys")
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// CreateKey generates a new access key.
func (h *AdminHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Description  string `json:"description"`
		ValidityDays int    `json:"validityDays"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	key, err := h.keys.Generate(payload.Description, payload.ValidityDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate access key")
		serviceError(w, err)
		return
	}

	h.audit.Record("admin.key.create", "info", "Access key generated: "+payload.Description, nil)
	writeJSON(w, http.StatusCreated, key)
}

// RevokeKey deactivates an access key. Idempotent.
func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.keys.Revoke(key); err != nil {
		log.Error().Err(err).Msg("Failed to revoke access key")
		serviceError(w, err)
		return
	}
	h.audit.Record("admin.key.revoke", "info", "Access key revoked", nil)
	w.WriteHeader(http.StatusNoContent)
}

// DeleteKey removes an access key row.
func (h *AdminHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	removed, err := h.keys.Delete(key)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete access key")
		serviceError(w, err)
		return
	}
	if !removed {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}
	h.audit.Record("admin.key.delete", "info", "Access key deleted", nil)
	w.WriteHeader(http.StatusNoContent)
}

// ListUsers retrieves one page of users with their file statistics.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))

	stats, err := h.files.GetAllUsersWithStats(page, perPage)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users with stats")
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ToggleUser flips a user's active flag.
func (h *AdminHandler) ToggleUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	active, err := h.users.ToggleUserStatus(username)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Failed to toggle user status")
		serviceError(w, err)
		return
	}
	h.audit.Record("admin.user.toggle", "info", "User status toggled", &username)
	writeJSON(w, http.StatusOK, map[string]bool{"isActive": active})
}

// DeleteUser removes a user. With ?deleteFiles=true the backing content of
// their tracked files is removed too.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	deleteFiles := r.URL.Query().Get("deleteFiles") == "true"

	if err := h.users.DeleteUser(username, deleteFiles); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("Failed to delete user")
		serviceError(w, err)
		return
	}
	h.audit.Record("admin.user.delete", "info", "User deleted", &username)
	w.WriteHeader(http.StatusNoContent)
}

// UpdateCoins adjusts a user's hubert coin balance.
func (h *AdminHandler) UpdateCoins(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	var payload struct {
		Amount int `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	balance, err := h.users.UpdateHubertCoins(username, payload.Amount)
	if err != nil {
		serviceError(w, err)
		return
	}
	h.audit.Record("admin.user.coins", "info", "Hubert coin balance adjusted", &username)
	writeJSON(w, http.StatusOK, map[string]int{"hubertCoins": balance})
}

// ResetUserPassword sets a new password for a user from the admin panel.
func (h *AdminHandler) ResetUserPassword(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	var payload struct {
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.users.AdminResetPassword(username, payload.NewPassword); err != nil {
		serviceError(w, err)
		return
	}
	h.audit.Record("admin.user.password_reset", "info", "Password reset by admin", &username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// UserLogs retrieves the audit trail of one user.
func (h *AdminHandler) UserLogs(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100 // Default limit
	}

	entries, err := h.audit.GetForUser(username, limit)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to retrieve user logs")
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// RecentActivity retrieves the most recent audit entries across all users.
func (h *AdminHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20 // Default limit
	}

	entries, err := h.audit.GetRecent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve recent activity")
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// CreateAnnouncement publishes a new announcement.
func (h *AdminHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title     string     `json:"title"`
		Message   string     `json:"message"`
		Type      string     `json:"type"`
		ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	announcement, err := h.announcements.Create(payload.Title, payload.Message, payload.Type, payload.ExpiresAt)
	if err != nil {
		serviceError(w, err)
		return
	}
	h.audit.Record("admin.announcement.create", "info", "Announcement created: "+payload.Title, nil)
	writeJSON(w, http.StatusCreated, announcement)
}

// ListAnnouncements retrieves every announcement, active or not.
func (h *AdminHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := h.announcements.GetAll()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list announcements")
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, announcements)
}

// DeactivateAnnouncement hides an announcement.
func (h *AdminHandler) DeactivateAnnouncement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.announcements.Deactivate(id); err != nil {
		serviceError(w, err)
		return
	}
	h.audit.Record("admin.announcement.deactivate", "info", "Announcement deactivated", nil)
	w.WriteHeader(http.StatusNoContent)
}

// OverallStats retrieves the store-wide aggregates for the dashboard.
func (h *AdminHandler) OverallStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.files.GetOverallStats()
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve overall stats")
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// SystemStatus retrieves a host health snapshot.
func (h *AdminHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, monitoring.CollectSystemStatus())
}
