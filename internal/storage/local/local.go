package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/filekeeper/internal/byterange"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/filex"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/storage"
	"github.com/google/uuid"
)

// CommitMode selects how staging objects are promoted.
type CommitMode int

const (
	// CommitAuto renames when both roots share a device and copies otherwise.
	CommitAuto CommitMode = iota
	CommitRename
	CommitCopy
)

func (m CommitMode) String() string {
	switch m {
	case CommitRename:
		return "rename"
	case CommitCopy:
		return "copy"
	default:
		return "auto"
	}
}

// Driver stores staging and resident objects in two directories.
type Driver struct {
	staging  *Staging
	resident string
	mode     CommitMode
	logger   logging.Logger
}

type Option func(*Driver)

// WithCommitMode overrides device detection.
func WithCommitMode(mode CommitMode) Option {
	return func(d *Driver) { d.mode = mode }
}

func WithLogger(l logging.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// New creates both roots if needed and decides, from their device ids,
// whether commits rename or copy.
func New(staging *Staging, residentRoot string, opts ...Option) (*Driver, error) {
	resident, err := filex.EnsureDir(residentRoot)
	if err != nil {
		return nil, fmt.Errorf("resident root: %w", err)
	}

	d := &Driver{staging: staging, resident: resident, logger: logging.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("module", "local_driver")

	if d.mode == CommitAuto {
		d.mode = CommitCopy
		if sameDevice(staging.Root(), resident) {
			d.mode = CommitRename
		}
	}
	d.logger.Info(context.Background(), "local driver ready",
		"staging", staging.Root(), "resident", resident, "commit", d.mode.String())

	return d, nil
}

func (d *Driver) Mode() CommitMode {
	return d.mode
}

func (d *Driver) path(id uuid.UUID) string {
	return filepath.Join(d.resident, id.String())
}

func (d *Driver) WriteStaging(ctx context.Context, id uuid.UUID, offset int64, r io.Reader) (int64, error) {
	return d.staging.Write(ctx, id, offset, r)
}

func (d *Driver) RemoveStaging(ctx context.Context, id uuid.UUID) error {
	return d.staging.Remove(ctx, id)
}

func (d *Driver) ReadStaging(ctx context.Context, id uuid.UUID) (io.ReadSeekCloser, error) {
	f, err := d.staging.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d *Driver) CommitStaging(ctx context.Context, id uuid.UUID) error {
	src, dst := d.staging.Path(id), d.path(id)

	if d.mode == CommitRename {
		err := os.Rename(src, dst)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, fs.ErrNotExist):
			return d.committed(dst)
		default:
			d.logger.Warn(ctx, "rename failed, falling back to copy", "id", id, "error", err)
		}
	}

	if err := filex.CopyFile(dst, src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return d.committed(dst)
		}
		return fmt.Errorf("copy staging file: %w", err)
	}

	if err := d.staging.Remove(ctx, id); err != nil {
		d.logger.Warn(ctx, "failed to remove staging copy", "id", id, "error", err)
	}
	return nil
}

// committed reports whether an earlier commit already produced dst.
func (d *Driver) committed(dst string) error {
	if _, err := os.Stat(dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return common.ErrorNotFound
		}
		return err
	}
	return nil
}

func (d *Driver) Remove(ctx context.Context, id uuid.UUID) error {
	return removeIfExists(d.path(id))
}

func (d *Driver) Read(ctx context.Context, id uuid.UUID, rng byterange.Range) (*storage.Object, error) {
	f, err := os.Open(d.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open resident file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat resident file: %w", err)
	}

	offset, length, err := rng.Window(info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek resident file: %w", err)
		}
	}

	return &storage.Object{
		ReadCloser: storage.NewLimitedReadCloser(f, length),
		Offset:     offset,
		Length:     length,
		Size:       info.Size(),
	}, nil
}

func sameDevice(a, b string) bool {
	da, okA := deviceID(a)
	db, okB := deviceID(b)
	return okA && okB && da == db
}
