package stagingfiles

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/google/uuid"
)

const columns = `id, name, mime, size, staged_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStagingFile(row scanner) (*models.StagingFile, error) {
	f := &models.StagingFile{}
	if err := row.Scan(&f.ID, &f.Name, &f.Mime, &f.Size, &f.StagedAt); err != nil {
		return nil, dbx.MapError(err)
	}
	return f, nil
}

// Create inserts a staging file with size 0.
func (r *PostgresRepository) Create(ctx context.Context, file *models.StagingFile) (*models.StagingFile, error) {
	query := `INSERT INTO staging_files (id, name, mime, size)
		VALUES ($1, $2, $3, 0)
		RETURNING ` + columns
	return scanStagingFile(r.db.QueryRowContext(ctx, query, file.ID, file.Name, file.Mime))
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*models.StagingFile, error) {
	query := `SELECT ` + columns + ` FROM staging_files WHERE id = $1`
	return scanStagingFile(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.StagingFile, error) {
	query := `SELECT ` + columns + ` FROM staging_files WHERE id = $1 FOR UPDATE`
	return scanStagingFile(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdateSize(ctx context.Context, id uuid.UUID, size int64) (*models.StagingFile, error) {
	query := `UPDATE staging_files SET size = $2 WHERE id = $1 RETURNING ` + columns
	return scanStagingFile(r.db.QueryRowContext(ctx, query, id, size))
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) (*models.StagingFile, error) {
	query := `DELETE FROM staging_files WHERE id = $1 RETURNING ` + columns
	return scanStagingFile(r.db.QueryRowContext(ctx, query, id))
}

// DeleteExpired skips rows locked by in-flight writes; they are picked up
// by a later sweep.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	query := `DELETE FROM staging_files WHERE id IN (
			SELECT id FROM staging_files
			WHERE staged_at < $1
			ORDER BY staged_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id`

	rows, err := r.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired staging files: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
