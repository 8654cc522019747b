package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/stagingfiles"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// them either directly on the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	StagingFiles(db dbx.DBTX) stagingfiles.Repository
	Files(db dbx.DBTX) files.Repository
}
