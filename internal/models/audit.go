package models

import "time"

// AuditEntry represents a recorded user or admin action.
type AuditEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "user.register", "admin.key.revoke"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	Username  *string   `json:"username,omitempty"` // Nullable for system-wide entries
	CreatedAt time.Time `json:"createdAt"`
}
