package models

import "time"

// UserStats is a per-user aggregate over tracked files, shown in the
// admin panel user table.
type UserStats struct {
	Name         string     `json:"name"`
	CreatedAt    time.Time  `json:"createdDate"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	FileCount    int        `json:"fileCount"`
	TotalSize    int64      `json:"totalSize"`
}

// UserStatsPage is one page of per-user aggregates.
type UserStatsPage struct {
	Users       []UserStats `json:"users"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	HasNext     bool        `json:"hasNext"`
	HasPrev     bool        `json:"hasPrev"`
}

// OverallStats is the store-wide aggregate for the admin dashboard.
type OverallStats struct {
	TotalUsers int   `json:"totalUsers"`
	TotalFiles int   `json:"totalFiles"`
	TotalSize  int64 `json:"totalSize"`
}
