package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kwiatekh/docpanel-be/internal/auth"
	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/rs/zerolog/log"
)

// FileHandler handles HTTP requests for tracked document files.
type FileHandler struct {
	service services.FileServiceProvider
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(service services.FileServiceProvider) *FileHandler {
	return &FileHandler{service: service}
}

// ListMine retrieves the authenticated user's tracked files.
func (h *FileHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}

	files, err := h.service.GetUserFiles(claims.Subject)
	if err != nil {
		log.Error().Err(err).Str("username", claims.Subject).Msg("Failed to list files")
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// Track upserts a tracked file record for the authenticated user. The
// document generator calls this after writing content to storage.
func (h *FileHandler) Track(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}

	var payload struct {
		Filename string `json:"filename"`
		Filepath string `json:"filepath"`
		Size     int64  `json:"size"`
		FileHash string `json:"fileHash,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Filename == "" || payload.Filepath == "" {
		http.Error(w, "filename and filepath are required", http.StatusBadRequest)
		return
	}

	if err := h.service.AddOrUpdate(claims.Subject, payload.Filename, payload.Filepath, payload.Size, payload.FileHash); err != nil {
		log.Error().Err(err).Str("filepath", payload.Filepath).Msg("Failed to track file")
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
