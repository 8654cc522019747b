package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/server/repositories/stagingfiles"
	"github.com/dmitrijs2005/filekeeper/internal/storage/local"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeStagingRepo struct {
	stagingfiles.Repository

	mu   sync.Mutex
	rows map[uuid.UUID]*models.StagingFile

	expiredErr error
	cutoff     time.Time
	limit      int
}

func newFakeStagingRepo() *fakeStagingRepo {
	return &fakeStagingRepo{rows: map[uuid.UUID]*models.StagingFile{}}
}

func (f *fakeStagingRepo) Create(_ context.Context, file *models.StagingFile) (*models.StagingFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *file
	row.StagedAt = time.Now()
	f.rows[row.ID] = &row
	out := row
	return &out, nil
}

func (f *fakeStagingRepo) Get(_ context.Context, id uuid.UUID) (*models.StagingFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *row
	return &out, nil
}

func (f *fakeStagingRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.StagingFile, error) {
	return f.Get(ctx, id)
}

func (f *fakeStagingRepo) UpdateSize(_ context.Context, id uuid.UUID, size int64) (*models.StagingFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	row.Size = size
	out := *row
	return &out, nil
}

func (f *fakeStagingRepo) Delete(_ context.Context, id uuid.UUID) (*models.StagingFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.rows, id)
	return row, nil
}

// add stores row as is, keeping its StagedAt.
func (f *fakeStagingRepo) add(row models.StagingFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[row.ID] = &row
}

// DeleteExpired removes rows staged strictly before cutoff, oldest first, at
// most limit of them.
func (f *fakeStagingRepo) DeleteExpired(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = cutoff
	f.limit = limit
	if f.expiredErr != nil {
		return nil, f.expiredErr
	}

	var expired []*models.StagingFile
	for _, row := range f.rows {
		if row.StagedAt.Before(cutoff) {
			expired = append(expired, row)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].StagedAt.Before(expired[j].StagedAt) })
	if len(expired) > limit {
		expired = expired[:limit]
	}

	ids := make([]uuid.UUID, 0, len(expired))
	for _, row := range expired {
		delete(f.rows, row.ID)
		ids = append(ids, row.ID)
	}
	return ids, nil
}

type fakeFilesRepo struct {
	files.Repository

	mu   sync.Mutex
	rows map[uuid.UUID]*models.File
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{rows: map[uuid.UUID]*models.File{}}
}

func (f *fakeFilesRepo) Create(_ context.Context, file *models.File) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := *file
	row.Committed = false
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	f.rows[row.ID] = &row
	out := row
	return &out, nil
}

func (f *fakeFilesRepo) Get(_ context.Context, id uuid.UUID) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *row
	return &out, nil
}

func (f *fakeFilesRepo) Delete(_ context.Context, id uuid.UUID) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.rows, id)
	return row, nil
}

func (f *fakeFilesRepo) MarkCommitted(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	row.Committed = true
	return nil
}

func (f *fakeFilesRepo) SelectUncommitted(_ context.Context, createdBefore time.Time, limit int) ([]*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.File
	for _, row := range f.rows {
		if !row.Committed && row.CreatedAt.Before(createdBefore) {
			c := *row
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeRepoManager struct {
	staging *fakeStagingRepo
	files   *fakeFilesRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) StagingFiles(dbx.DBTX) stagingfiles.Repository { return m.staging }

func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository { return m.files }

type fakeReclaimer struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (r *fakeReclaimer) Enqueue(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.ids = append(r.ids, id)
	return nil
}

type fakeIndexer struct {
	indexed []uuid.UUID
	err     error
}

func (i *fakeIndexer) IndexFile(_ context.Context, file *models.File) error {
	i.indexed = append(i.indexed, file.ID)
	return i.err
}

type testEnv struct {
	db        *sql.DB
	mock      sqlmock.Sqlmock
	staging   *fakeStagingRepo
	files     *fakeFilesRepo
	driver    *local.Driver
	reclaimer *fakeReclaimer
	indexer   *fakeIndexer

	stagingSvc *StagingFileService
	fileSvc    *FileService
}

func newTestEnv(t *testing.T, maxSize int64) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	base := t.TempDir()
	st, err := local.NewStaging(filepath.Join(base, "staging"), maxSize)
	require.NoError(t, err)
	driver, err := local.New(st, filepath.Join(base, "files"))
	require.NoError(t, err)

	rm := &fakeRepoManager{staging: newFakeStagingRepo(), files: newFakeFilesRepo()}
	reclaimer := &fakeReclaimer{}
	indexer := &fakeIndexer{}

	stagingSvc := NewStagingFileService(db, rm, driver, reclaimer, logging.Nop())
	fileSvc := NewFileService(db, rm, stagingSvc, driver, indexer, logging.Nop())

	return &testEnv{
		db:         db,
		mock:       mock,
		staging:    rm.staging,
		files:      rm.files,
		driver:     driver,
		reclaimer:  reclaimer,
		indexer:    indexer,
		stagingSvc: stagingSvc,
		fileSvc:    fileSvc,
	}
}

func (e *testEnv) expectTx(commit bool) {
	e.mock.ExpectBegin()
	if commit {
		e.mock.ExpectCommit()
	} else {
		e.mock.ExpectRollback()
	}
}
