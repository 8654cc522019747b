package services

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
)

// Indexer is notified about every newly promoted file.
type Indexer interface {
	IndexFile(ctx context.Context, file *models.File) error
}

// LogIndexer only logs the files it is handed.
type LogIndexer struct {
	logger logging.Logger
}

func NewLogIndexer(logger logging.Logger) *LogIndexer {
	return &LogIndexer{logger: logger.With("module", "indexer")}
}

func (i *LogIndexer) IndexFile(ctx context.Context, file *models.File) error {
	i.logger.Info(ctx, "file indexed", "id", file.ID, "name", file.Name, "mime", file.Mime, "size", file.Size)
	return nil
}
