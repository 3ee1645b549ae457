package models

import "time"

// User represents a registered account. The username is the primary
// identifier and never changes after registration.
type User struct {
	Username             string     `json:"username"`
	PasswordHash         string     `json:"-"` // Never expose this to the client
	CreatedAt            time.Time  `json:"createdAt"`
	IsActive             bool       `json:"isActive"`
	LastLogin            *time.Time `json:"lastLogin,omitempty"`
	AccessKeyUsed        *string    `json:"accessKeyUsed,omitempty"`
	HubertCoins          int        `json:"hubertCoins"`
	PasswordResetHash    *string    `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	RecoveryToken        *string    `json:"-"`
	HasSeenTutorial      bool       `json:"hasSeenTutorial"`
}
