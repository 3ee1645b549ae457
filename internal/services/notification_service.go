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

// Pusher delivers a payload to all live connections of one user, or to
// everyone when username is empty. The websocket hub implements it.
type Pusher interface {
	PushTo(username string, payload []byte)
}

// NotificationServiceProvider defines the interface for notification services.
type NotificationServiceProvider interface {
	Notify(username, message string) error
	GetForUser(username string) ([]models.Notification, error)
	UnreadCount(username string) (int, error)
	MarkRead(id, username string) error
	MarkAllRead(username string) error
}

// NotificationService provides business logic for per-user notifications.
type NotificationService struct {
	db  *sql.DB
	hub Pusher // optional, nil disables live push
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(db *sql.DB, hub Pusher) *NotificationService {
	return &NotificationService{db: db, hub: hub}
}

// Notify creates a notification for a user and pushes it to any live
// websocket connections. Callers treat it as best effort.
func (s *NotificationService) Notify(username, message string) error {
	n := models.Notification{
		ID:        uuid.New().String(),
		Username:  username,
		Message:   message,
		CreatedAt: time.Now(),
	}

	stmt, err := s.db.Prepare("INSERT INTO notifications (id, username, message, created_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(n.ID, n.Username, n.Message, n.CreatedAt); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if s.hub != nil {
		if payload, err := json.Marshal(websocket.Message{Action: "notification", Payload: n}); err == nil {
			s.hub.PushTo(username, payload)
		} else {
			log.Error().Err(err).Str("username", username).Msg("Failed to encode notification push")
		}
	}
	return nil
}

// GetForUser retrieves a user's notifications, newest first.
func (s *NotificationService) GetForUser(username string) ([]models.Notification, error) {
	rows, err := s.db.Query(
		"SELECT id, username, message, is_read, created_at FROM notifications WHERE username = ? ORDER BY created_at DESC",
		username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.Username, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UnreadCount returns how many unread notifications a user has.
func (s *NotificationService) UnreadCount(username string) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM notifications WHERE username = ? AND is_read = 0", username).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return count, nil
}

// MarkRead marks one notification as read. The username guard keeps users
// from touching notifications that are not theirs.
func (s *NotificationService) MarkRead(id, username string) error {
	res, err := s.db.Exec(
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND username = ?", id, username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every notification of a user as read.
func (s *NotificationService) MarkAllRead(username string) error {
	if _, err := s.db.Exec("UPDATE notifications SET is_read = 1 WHERE username = ?", username); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
