package files

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/google/uuid"
)

const columns = `id, name, mime, size, hash, committed, created_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*models.File, error) {
	f := &models.File{}
	if err := row.Scan(&f.ID, &f.Name, &f.Mime, &f.Size, &f.Hash, &f.Committed, &f.CreatedAt); err != nil {
		return nil, dbx.MapError(err)
	}
	return f, nil
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `INSERT INTO files (id, name, mime, size, hash, committed)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING ` + columns
	return scanFile(r.db.QueryRowContext(ctx, query, file.ID, file.Name, file.Mime, file.Size, file.Hash))
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*models.File, error) {
	query := `SELECT ` + columns + ` FROM files WHERE id = $1`
	return scanFile(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) (*models.File, error) {
	query := `DELETE FROM files WHERE id = $1 RETURNING ` + columns
	return scanFile(r.db.QueryRowContext(ctx, query, id))
}

// MarkCommitted records that the bytes of id reached resident storage.
// Exactly one row must be affected.
func (r *PostgresRepository) MarkCommitted(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE files SET committed = true WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark committed: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

// SelectUncommitted returns files whose promotion stopped between the
// metadata commit and the byte move, oldest first.
func (r *PostgresRepository) SelectUncommitted(ctx context.Context, createdBefore time.Time, limit int) ([]*models.File, error) {
	query := `SELECT ` + columns + ` FROM files
		WHERE NOT committed AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
