package database

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool with foreign key
// enforcement enabled. In-memory databases are pinned to a single
// connection so every caller sees the same store.
func New(dataSourceName string) (*sql.DB, error) {
	dsn := dataSourceName + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dataSourceName, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT NOT NULL PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		is_active INTEGER NOT NULL DEFAULT 1,
		last_login DATETIME,
		access_key_used TEXT UNIQUE,
		hubert_coins INTEGER NOT NULL DEFAULT 0,
		password_reset_hash TEXT,
		password_reset_expires DATETIME,
		recovery_token TEXT,
		has_seen_tutorial INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS access_keys (
		key TEXT NOT NULL PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME,
		is_active INTEGER NOT NULL DEFAULT 1,
		used_count INTEGER NOT NULL DEFAULT 0,
		last_used DATETIME
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		message TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_username ON notifications(username);

	CREATE TABLE IF NOT EXISTS announcements (
		id TEXT NOT NULL PRIMARY KEY,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'info',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS files (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		filename TEXT NOT NULL,
		filepath TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL,
		modified_at DATETIME NOT NULL,
		file_hash TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_files_username ON files(username);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		username TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_username ON audit_log(username);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
