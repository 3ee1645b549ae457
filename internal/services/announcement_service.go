package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kwiatekh/docpanel-be/internal/models"
	"github.com/kwiatekh/docpanel-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

// AnnouncementServiceProvider defines the interface for announcement services.
type AnnouncementServiceProvider interface {
	Create(title, message, announcementType string, expiresAt *time.Time) (models.Announcement, error)
	GetActive() ([]models.Announcement, error)
	GetAll() ([]models.Announcement, error)
	Deactivate(id string) error
	DeactivateExpired() (int64, error)
}

// AnnouncementService provides business logic for global announcements.
type AnnouncementService struct {
	db  *sql.DB
	hub Pusher // optional, nil disables live push
}

// NewAnnouncementService creates a new AnnouncementService.
func NewAnnouncementService(db *sql.DB, hub Pusher) *AnnouncementService {
	return &AnnouncementService{db: db, hub: hub}
}

// Create publishes a new announcement and pushes it to all connected
// clients.
func (s *AnnouncementService) Create(title, message, announcementType string, expiresAt *time.Time) (models.Announcement, error) {
	if title == "" || message == "" {
		return models.Announcement{}, fmt.Errorf("%w: title and message are required", ErrValidation)
	}
	if announcementType == "" {
		announcementType = "info"
	}

	a := models.Announcement{
		ID:        uuid.New().String(),
		Title:     title,
		Message:   message,
		Type:      announcementType,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
		IsActive:  true,
	}

	stmt, err := s.db.Prepare("INSERT INTO announcements (id, title, message, type, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return models.Announcement{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(a.ID, a.Title, a.Message, a.Type, a.CreatedAt, a.ExpiresAt); err != nil {
		return models.Announcement{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if s.hub != nil {
		if payload, err := json.Marshal(websocket.Message{Action: "announcement", Payload: a}); err == nil {
			s.hub.PushTo("", payload) // empty username = broadcast
		} else {
			log.Error().Err(err).Msg("Failed to encode announcement push")
		}
	}
	return a, nil
}

// GetActive retrieves announcements that are active and unexpired, newest
// first.
func (s *AnnouncementService) GetActive() ([]models.Announcement, error) {
	rows, err := s.db.Query(`
		SELECT id, title, message, type, created_at, expires_at, is_active
		FROM announcements
		WHERE is_active = 1 AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()
	return scanAnnouncementRows(rows)
}

// GetAll retrieves every announcement for the admin panel, newest first.
func (s *AnnouncementService) GetAll() ([]models.Announcement, error) {
	rows, err := s.db.Query(`
		SELECT id, title, message, type, created_at, expires_at, is_active
		FROM announcements ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()
	return scanAnnouncementRows(rows)
}

// Deactivate hides an announcement.
func (s *AnnouncementService) Deactivate(id string) error {
	res, err := s.db.Exec("UPDATE announcements SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateExpired flips is_active off for expired announcements. Run from
// the maintenance sweep.
func (s *AnnouncementService) DeactivateExpired() (int64, error) {
	res, err := s.db.Exec(
		"UPDATE announcements SET is_active = 0 WHERE is_active = 1 AND expires_at IS NOT NULL AND expires_at <= ?",
		time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return res.RowsAffected()
}

func scanAnnouncementRows(rows *sql.Rows) ([]models.Announcement, error) {
	var announcements []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Message, &a.Type, &a.CreatedAt, &a.ExpiresAt, &a.IsActive); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		announcements = append(announcements, a)
	}
	return announcements, rows.Err()
}
