package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/byterange"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filekeeper/internal/storage"
	"github.com/google/uuid"
)

type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	staging     *StagingFileService
	driver      storage.Driver
	indexer     Indexer
	logger      logging.Logger
	now         func() time.Time
}

func NewFileService(db *sql.DB, repomanager repomanager.RepositoryManager, staging *StagingFileService,
	driver storage.Driver, indexer Indexer, logger logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: repomanager,
		staging:     staging,
		driver:      driver,
		indexer:     indexer,
		logger:      logger.With("module", "files"),
		now:         time.Now,
	}
}

// Promote turns the staging file id into a resident file. The staging row is
// consumed and the file row inserted in one transaction, so concurrent
// promotions of the same id produce exactly one file. The bytes are moved
// after the transaction commits and the row is then marked committed; rows
// left uncommitted by a crash are finished by RecoverUncommitted or on first
// read.
func (s *FileService) Promote(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var file *models.File

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		staged, err := s.staging.RemoveTx(ctx, tx, id, false)
		if err != nil {
			return err
		}

		content, err := s.driver.ReadStaging(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotYetFilled
		}
		if err != nil {
			return fmt.Errorf("read staging file: %w", err)
		}
		defer content.Close()

		mimeType, err := resolveMime(staged.Mime, staged.Name, content)
		if err != nil {
			return err
		}

		size, hash, err := checksum(content)
		if err != nil {
			return fmt.Errorf("hash staging file: %w", err)
		}

		file, err = s.repomanager.Files(tx).Create(ctx, &models.File{
			ID:   id,
			Name: staged.Name,
			Mime: mimeType,
			Size: size,
			Hash: hash,
		})
		return err
	})
	metrics.RecordPromotion(err)
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, file); err != nil {
		s.logger.Warn(ctx, "promoted file left uncommitted", "id", id, "error", err)
	}

	if err := s.indexer.IndexFile(ctx, file); err != nil {
		s.logger.Warn(ctx, "indexing failed", "id", id, "error", err)
	}

	s.logger.Info(ctx, "file promoted", "id", id, "size", file.Size, "mime", file.Mime)
	return file, nil
}

// commit moves the bytes of file into resident storage and sets the marker.
func (s *FileService) commit(ctx context.Context, file *models.File) error {
	if err := s.driver.CommitStaging(ctx, file.ID); err != nil {
		return fmt.Errorf("commit staging file: %w", err)
	}
	if err := s.repomanager.Files(s.db).MarkCommitted(ctx, file.ID); err != nil {
		return err
	}
	file.Committed = true
	return nil
}

func (s *FileService) Get(ctx context.Context, id uuid.UUID) (*models.File, error) {
	return s.repomanager.Files(s.db).Get(ctx, id)
}

// Remove deletes the file row and its resident bytes together.
func (s *FileService) Remove(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var removed *models.File

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		removed, err = s.repomanager.Files(tx).Delete(ctx, id)
		if err != nil {
			return err
		}

		if !removed.Committed {
			if err := s.driver.RemoveStaging(ctx, id); err != nil {
				return fmt.Errorf("remove staging bytes: %w", err)
			}
		}
		if err := s.driver.Remove(ctx, id); err != nil {
			return fmt.Errorf("remove resident bytes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "file removed", "id", id)
	return removed, nil
}

// ReadData returns the file and a reader over rng of its content. The caller
// closes the object.
func (s *FileService) ReadData(ctx context.Context, id uuid.UUID, rng byterange.Range) (*models.File, *storage.Object, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if !file.Committed {
		if err := s.commit(ctx, file); err != nil {
			return nil, nil, err
		}
	}

	obj, err := s.driver.Read(ctx, id, rng)
	if err != nil {
		return nil, nil, err
	}

	metrics.RecordBytesServed(obj.Length)
	return file, obj, nil
}

// RecoverUncommitted finishes up to limit promotions whose rows were created
// more than olderThan ago but never marked committed, and returns how many
// were finished.
func (s *FileService) RecoverUncommitted(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	pending, err := s.repomanager.Files(s.db).SelectUncommitted(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, file := range pending {
		if err := s.commit(ctx, file); err != nil {
			s.logger.Warn(ctx, "recovery of promoted file failed", "id", file.ID, "error", err)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.Info(ctx, "uncommitted files recovered", "count", recovered)
	}
	return recovered, nil
}

// checksum reads r to the end and returns its length and CRC-32 (IEEE).
func checksum(r io.Reader) (int64, int64, error) {
	h := crc32.NewIEEE()
	n, err := io.Copy(h, r)
	if err != nil {
		return 0, 0, err
	}
	return n, int64(h.Sum32()), nil
}
