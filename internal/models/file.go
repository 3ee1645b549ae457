package models

import "time"

// File tracks a generated document belonging to a user. The filepath is
// unique across the whole store; rows cascade away with their owner.
type File struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Filename   string    `json:"filename"`
	Filepath   string    `json:"-"` // Internal use, not exposed to client
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
	FileHash   *string   `json:"fileHash,omitempty"`
}
