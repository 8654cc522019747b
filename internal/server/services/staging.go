// Package services implements the staging store and promotion orchestration
// on top of the repositories and a storage.Driver.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filekeeper/internal/storage"
	"github.com/google/uuid"
)

// Reclaimer accepts ids whose staging bytes should be deleted later.
type Reclaimer interface {
	Enqueue(ctx context.Context, id uuid.UUID) error
}

type StagingFileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	driver      storage.Driver
	reclaimer   Reclaimer
	logger      logging.Logger
	now         func() time.Time
}

func NewStagingFileService(db *sql.DB, repomanager repomanager.RepositoryManager, driver storage.Driver,
	reclaimer Reclaimer, logger logging.Logger) *StagingFileService {
	return &StagingFileService{
		db:          db,
		repomanager: repomanager,
		driver:      driver,
		reclaimer:   reclaimer,
		logger:      logger.With("module", "staging"),
		now:         time.Now,
	}
}

func (s *StagingFileService) Create(ctx context.Context, name string, mime *string) (*models.StagingFile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrorInvalidInput)
	}
	if mime != nil && *mime == "" {
		mime = nil
	}

	f, err := s.repomanager.StagingFiles(s.db).Create(ctx, &models.StagingFile{
		ID:   uuid.New(),
		Name: name,
		Mime: mime,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "staging file created", "id", f.ID, "name", f.Name)
	return f, nil
}

func (s *StagingFileService) Get(ctx context.Context, id uuid.UUID) (*models.StagingFile, error) {
	return s.repomanager.StagingFiles(s.db).Get(ctx, id)
}

// Fill writes r at offset into the staging object of id and records the new
// size. The row stays locked for the whole write, so chunks for one id are
// applied one at a time.
//
// When the write fails after changing the object the size actually stored is
// still recorded and the returned staging file is non-nil alongside the error.
// Only the copy observes ctx; the row update commits even after a client
// disconnect cancels the request.
func (s *StagingFileService) Fill(ctx context.Context, id uuid.UUID, offset int64, r io.Reader) (*models.StagingFile, error) {
	var (
		result   *models.StagingFile
		grown    int64
		writeErr error
	)

	err := dbx.WithTx(context.WithoutCancel(ctx), s.db, nil, func(txCtx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.StagingFiles(tx)

		current, err := repo.GetForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		size, err := s.driver.WriteStaging(ctx, id, offset, r)
		if err != nil {
			// Rejected writes leave the object as it was. Anything that
			// changed the stored bytes must still reach the row.
			var werr *storage.WriteError
			if !errors.As(err, &werr) || size < 0 || size == current.Size {
				return err
			}
			writeErr = err
		}

		grown = size - current.Size
		result, err = repo.UpdateSize(txCtx, id, size)
		return err
	})

	if err != nil {
		result, grown = nil, 0
	} else {
		err = writeErr
	}
	metrics.RecordStagingWrite(grown, err)

	if err != nil {
		if result != nil {
			s.logger.Warn(ctx, "staging write failed", "id", id, "offset", offset, "size", result.Size, "error", err)
			return result, err
		}
		return nil, err
	}

	s.logger.Debug(ctx, "staging file filled", "id", id, "offset", offset, "size", result.Size)
	return result, nil
}

// Remove deletes the staging row and, when deleteBytes is set, its bytes.
func (s *StagingFileService) Remove(ctx context.Context, id uuid.UUID, deleteBytes bool) (*models.StagingFile, error) {
	var removed *models.StagingFile

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		removed, err = s.RemoveTx(ctx, tx, id, deleteBytes)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "staging file removed", "id", id, "bytes_deleted", deleteBytes)
	return removed, nil
}

// RemoveTx is Remove running inside the caller's transaction.
func (s *StagingFileService) RemoveTx(ctx context.Context, tx dbx.DBTX, id uuid.UUID, deleteBytes bool) (*models.StagingFile, error) {
	removed, err := s.repomanager.StagingFiles(tx).Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	if deleteBytes {
		if err := s.driver.RemoveStaging(ctx, id); err != nil {
			return nil, fmt.Errorf("remove staging bytes: %w", err)
		}
	}

	return removed, nil
}

// SweepExpired deletes up to limit staging rows older than maxAge and queues
// their bytes for removal. Rows locked by in-flight uploads are skipped.
//
// Once a row is gone nothing else refers to its bytes, so ids the queue does
// not accept (stopped, or ctx ended while it was full) are removed inline.
func (s *StagingFileService) SweepExpired(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-maxAge)

	ids, err := s.repomanager.StagingFiles(s.db).DeleteExpired(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.reclaimer.Enqueue(ctx, id); err != nil {
			s.logger.Warn(ctx, "staging bytes not queued, removing inline", "id", id, "error", err)
			if err := s.driver.RemoveStaging(context.WithoutCancel(ctx), id); err != nil {
				s.logger.Error(ctx, "failed to remove staging bytes", "id", id, "error", err)
			}
		}
	}

	return len(ids), nil
}
