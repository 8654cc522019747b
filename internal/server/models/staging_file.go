package models

import (
	"time"

	"github.com/google/uuid"
)

// StagingFile is an upload in progress. Size always equals the number of
// bytes stored in its staging object.
type StagingFile struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Mime     *string   `json:"mime"`
	Size     int64     `json:"size"`
	StagedAt time.Time `json:"staged_at"`
}
