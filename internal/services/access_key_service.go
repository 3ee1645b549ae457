package services

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/kwiatekh/docpanel-be/internal/models"
	"github.com/rs/zerolog/log"
)

// execer is the subset of *sql.DB and *sql.Tx the key service writes through,
// so consumption can join the caller's transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// AccessKeyServiceProvider defines the interface for access key services.
type AccessKeyServiceProvider interface {
	Generate(description string, validityDays int) (models.AccessKey, error)
	Validate(key string) error
	Consume(key string) error
	ConsumeInTx(tx *sql.Tx, key string) error
	Revoke(key string) error
	Delete(key string) (bool, error)
	GetAll() ([]models.AccessKey, error)
	DeactivateExpired() (int64, error)
}

// AccessKeyService provides business logic for registration access keys.
type AccessKeyService struct {
	db *sql.DB
}

// NewAccessKeyService creates a new AccessKeyService.
func NewAccessKeyService(db *sql.DB) *AccessKeyService {
	return &AccessKeyService{db: db}
}

// newKeyString returns a cryptographically random url-safe key.
func newKeyString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Generate creates a new active key. A validityDays of zero or less means
// the key never expires.
func (s *AccessKeyService) Generate(description string, validityDays int) (models.AccessKey, error) {
	keyStr, err := newKeyString()
	if err != nil {
		return models.AccessKey{}, fmt.Errorf("%w: generating key: %v", ErrStorage, err)
	}

	key := models.AccessKey{
		Key:         keyStr,
		Description: description,
		CreatedAt:   time.Now(),
		IsActive:    true,
	}
	if validityDays > 0 {
		expires := key.CreatedAt.AddDate(0, 0, validityDays)
		key.ExpiresAt = &expires
	}

	stmt, err := s.db.Prepare("INSERT INTO access_keys(key, description, created_at, expires_at) VALUES(?, ?, ?, ?)")
	if err != nil {
		return models.AccessKey{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer stmt.Close()

	if _, err = stmt.Exec(key.Key, key.Description, key.CreatedAt, key.ExpiresAt); err != nil {
		// A collision on 256 bits of randomness is practically unreachable,
		// but the unique constraint still has to surface as a typed error.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return models.AccessKey{}, ErrDuplicateKey
		}
		return models.AccessKey{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	log.Info().Str("description", description).Int("validity_days", validityDays).Msg("Generated access key")
	return key, nil
}

// Validate reports whether the key exists, is active and is unexpired.
// It is a pure read and never mutates the key row.
func (s *AccessKeyService) Validate(key string) error {
	var k models.AccessKey
	row := s.db.QueryRow("SELECT key, is_active, expires_at FROM access_keys WHERE key = ?", key)
	if err := row.Scan(&k.Key, &k.IsActive, &k.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return ErrInvalidAccessKey
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !k.Valid(time.Now()) {
		return ErrInvalidAccessKey
	}
	return nil
}

// Consume atomically marks the key as used and deactivates it. Exactly one
// concurrent caller can win; everyone else gets ErrInvalidAccessKey.
func (s *AccessKeyService) Consume(key string) error {
	return consume(s.db, key)
}

// ConsumeInTx is Consume running inside the caller's transaction, so key
// consumption and user creation commit or roll back together.
func (s *AccessKeyService) ConsumeInTx(tx *sql.Tx, key string) error {
	return consume(tx, key)
}

// consume re-checks validity in the UPDATE itself rather than trusting an
// earlier Validate read, so a lost race surfaces as zero affected rows.
func consume(e execer, key string) error {
	now := time.Now()
	res, err := e.Exec(`
		UPDATE access_keys
		SET used_count = used_count + 1, last_used = ?, is_active = 0
		WHERE key = ? AND is_active = 1 AND (expires_at IS NULL OR expires_at > ?)`,
		now, key, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if affected == 0 {
		return ErrInvalidAccessKey
	}
	return nil
}

// Revoke deactivates a key. Revoking an already inactive or unknown key is
// a no-op.
func (s *AccessKeyService) Revoke(key string) error {
	if _, err := s.db.Exec("UPDATE access_keys SET is_active = 0 WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Delete removes a key row entirely. Returns whether a row was removed.
func (s *AccessKeyService) Delete(key string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM access_keys WHERE key = ?", key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return affected > 0, nil
}

// GetAll retrieves every key, newest first, for the admin panel.
func (s *AccessKeyService) GetAll() ([]models.AccessKey, error) {
	rows, err := s.db.Query(`
		SELECT key, description, created_at, expires_at, is_active, used_count, last_used
		FROM access_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()

	var keys []models.AccessKey
	for rows.Next() {
		var k models.AccessKey
		if err := rows.Scan(&k.Key, &k.Description, &k.CreatedAt, &k.ExpiresAt, &k.IsActive, &k.UsedCount, &k.LastUsed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeactivateExpired flips is_active off for every expired key. Run from the
// maintenance sweep; Validate itself never mutates.
func (s *AccessKeyService) DeactivateExpired() (int64, error) {
	res, err := s.db.Exec(
		"UPDATE access_keys SET is_active = 0 WHERE is_active = 1 AND expires_at IS NOT NULL AND expires_at <= ?",
		time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return res.RowsAffected()
}
