// Package files persists resident File rows.
package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts a file row with committed = false.
	Create(ctx context.Context, file *models.File) (*models.File, error)
	Get(ctx context.Context, id uuid.UUID) (*models.File, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.File, error)
	MarkCommitted(ctx context.Context, id uuid.UUID) error
	SelectUncommitted(ctx context.Context, createdBefore time.Time, limit int) ([]*models.File, error)
}
