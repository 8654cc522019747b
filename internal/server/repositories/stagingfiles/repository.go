// Package stagingfiles persists StagingFile rows.
package stagingfiles

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, file *models.StagingFile) (*models.StagingFile, error)
	Get(ctx context.Context, id uuid.UUID) (*models.StagingFile, error)
	// GetForUpdate row-locks the staging file until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.StagingFile, error)
	UpdateSize(ctx context.Context, id uuid.UUID, size int64) (*models.StagingFile, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.StagingFile, error)
	// DeleteExpired removes up to limit rows staged before cutoff, oldest
	// first, and returns their ids.
	DeleteExpired(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}
