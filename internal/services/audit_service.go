package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kwiatekh/docpanel-be/internal/models"
)

// AuditServiceProvider defines the interface for audit log services.
type AuditServiceProvider interface {
	Record(entryType, level, message string, username *string) error
	GetRecent(limit int) ([]models.AuditEntry, error)
	GetForUser(username string, limit int) ([]models.AuditEntry, error)
}

// AuditService records user and admin actions for the admin panel.
type AuditService struct {
	db *sql.DB
}

// NewAuditService creates a new AuditService.
func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes a new entry to the audit log.
func (s *AuditService) Record(entryType, level, message string, username *string) error {
	entry := models.AuditEntry{
		ID:        uuid.New().String(),
		Type:      entryType,
		Level:     level,
		Message:   message,
		Username:  username,
		CreatedAt: time.Now(),
	}

	stmt, err := s.db.Prepare("INSERT INTO audit_log (id, type, level, message, username, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(entry.ID, entry.Type, entry.Level, entry.Message, entry.Username, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// GetRecent retrieves the most recent entries across all users.
func (s *AuditService) GetRecent(limit int) ([]models.AuditEntry, error) {
	rows, err := s.db.Query(
		"SELECT id, type, level, message, username, created_at FROM audit_log ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

// GetForUser retrieves the most recent entries for one user.
func (s *AuditService) GetForUser(username string, limit int) ([]models.AuditEntry, error) {
	rows, err := s.db.Query(
		"SELECT id, type, level, message, username, created_at FROM audit_log WHERE username = ? ORDER BY created_at DESC LIMIT ?",
		username, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()
	return scanAuditRows(rows)
}

func scanAuditRows(rows *sql.Rows) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		if err := rows.Scan(&entry.ID, &entry.Type, &entry.Level, &entry.Message, &entry.Username, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
