package models

import "time"

// AccessKey is a single-use credential that gates new user registration.
// A key is valid iff it is active and either never expires or has not
// expired yet.
type AccessKey struct {
	Key         string     `json:"key"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"` // nil = never expires
	IsActive    bool       `json:"isActive"`
	UsedCount   int        `json:"usedCount"`
	LastUsed    *time.Time `json:"lastUsed,omitempty"`
}

// Valid reports whether the key can be consumed at the given instant.
func (k AccessKey) Valid(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}
