package models

import "time"

// Notification is a per-user message shown in the app. Rows are removed
// together with their owner via the foreign key cascade.
type Notification struct {
	ID        string    `json:"id"`
	Username  string    `json:"-"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}
