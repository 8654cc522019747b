// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/google/uuid"
)

// File is a resident upload. It is created only by promoting a StagingFile
// and keeps that staging file's id.
type File struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	// Mime is the declared type, or the sniffed one, or the generic binary type.
	Mime string `json:"mime"`
	Size int64  `json:"size"`
	// Hash is the CRC-32 (IEEE) of the content.
	Hash      int64     `json:"hash"`
	CreatedAt time.Time `json:"created_at"`

	// Committed is set once the bytes have been moved into resident storage.
	Committed bool `json:"-"`
}
