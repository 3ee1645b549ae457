package services

import (
	"database/sql"
	"testing"

	"github.com/kwiatekh/docpanel-be/internal/database"
	"github.com/stretchr/testify/require"
)

// newTestDB opens a fresh in-memory store with the full schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestUserService wires a user service with real key and notification
// services over the same store. bcrypt.MinCost keeps the tests fast.
func newTestUserService(t *testing.T, db *sql.DB) (*UserService, *AccessKeyService, *NotificationService) {
	t.Helper()
	keys := NewAccessKeyService(db)
	notifications := NewNotificationService(db, nil)
	users := NewUserService(db, keys, notifications, nil, 4)
	return users, keys, notifications
}

// registerTestUser creates a user through the real registration path and
// returns the registration result.
func registerTestUser(t *testing.T, users *UserService, keys *AccessKeyService, username, password string) RegisterResult {
	t.Helper()
	key, err := keys.Generate("test key for "+username, 1)
	require.NoError(t, err)
	result, err := users.Register(username, password, key.Key, "", false)
	require.NoError(t, err)
	return result
}
