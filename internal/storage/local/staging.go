// Package local implements storage.Driver on two local directories: one for
// staging objects and one for resident objects.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/filex"
	"github.com/dmitrijs2005/filekeeper/internal/storage"
	"github.com/google/uuid"
)

// Staging keeps in-progress uploads as one file per id under a root
// directory. It is shared by every driver that stages on local disk.
type Staging struct {
	root    string
	maxSize int64
}

// NewStaging creates the staging root if needed. A maxSize <= 0 means no
// limit other than math.MaxInt64.
func NewStaging(root string, maxSize int64) (*Staging, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("staging root: %w", err)
	}
	if maxSize <= 0 {
		maxSize = math.MaxInt64
	}
	return &Staging{root: abs, maxSize: maxSize}, nil
}

func (s *Staging) Root() string {
	return s.root
}

// Path returns the file backing the staging object for id.
func (s *Staging) Path(id uuid.UUID) string {
	return filepath.Join(s.root, id.String())
}

// Write stores r at offset in the staging object for id, creating it on the
// first write. Existing bytes past offset are overwritten, never truncated.
// When the object cannot even be opened the returned size is -1.
func (s *Staging) Write(ctx context.Context, id uuid.UUID, offset int64, r io.Reader) (int64, error) {
	path := s.Path(id)
	f, created, err := openStaging(path)
	if err != nil {
		return -1, &storage.WriteError{Err: fmt.Errorf("%w: %w", storage.ErrWrite, err), Offset: offset, FileSize: -1}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return -1, &storage.WriteError{Err: fmt.Errorf("%w: %w", storage.ErrWrite, err), Offset: offset, FileSize: -1}
	}
	size := info.Size()

	if werr := s.validate(offset, size); werr != nil {
		// A rejected first write must not leave an empty object behind.
		if created {
			_ = removeIfExists(path)
		}
		return size, werr
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return size, &storage.WriteError{Err: fmt.Errorf("%w: %w", storage.ErrWrite, err), Offset: offset, FileSize: size}
	}

	room := s.maxSize - offset
	n, copyErr := io.Copy(f, io.LimitReader(&ctxReader{ctx: ctx, r: r}, room))
	overflow := false
	if copyErr == nil && n == room {
		var extra [1]byte
		if k, _ := io.ReadFull(r, extra[:]); k > 0 {
			overflow = true
		}
	}
	syncErr := f.Sync()

	observed := max(size, offset+n)
	if after, err := f.Stat(); err == nil {
		observed = after.Size()
	}

	switch {
	case copyErr != nil:
		return observed, &storage.WriteError{Err: fmt.Errorf("%w: %w", storage.ErrWrite, copyErr), Offset: offset, FileSize: observed}
	case syncErr != nil:
		return observed, &storage.WriteError{Err: fmt.Errorf("%w: %w", storage.ErrWrite, syncErr), Offset: offset, FileSize: observed}
	case overflow:
		return observed, &storage.WriteError{Err: storage.ErrFileTooLarge, Offset: offset, FileSize: observed, Limit: s.maxSize}
	}

	return observed, nil
}

// openStaging opens the object at path for writing and reports whether this
// call created it.
func openStaging(path string) (*os.File, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err == nil {
		return f, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, fs.ErrExist) {
		f, err = os.OpenFile(path, os.O_RDWR, 0)
		return f, false, err
	}
	return f, err == nil, err
}

func (s *Staging) validate(offset, size int64) *storage.WriteError {
	switch {
	case size > s.maxSize:
		return &storage.WriteError{Err: storage.ErrFileTooLarge, Offset: offset, FileSize: size, Limit: s.maxSize}
	case offset < 0:
		return &storage.WriteError{Err: storage.ErrNegativeOffset, Offset: offset, FileSize: size}
	case offset > size:
		return &storage.WriteError{Err: storage.ErrOffsetExceedsFileSize, Offset: offset, FileSize: size}
	case offset > s.maxSize-size:
		return &storage.WriteError{Err: storage.ErrOffsetTooLarge, Offset: offset, FileSize: size, Limit: s.maxSize}
	}
	return nil
}

// Open returns the staging object for id or common.ErrorNotFound.
func (s *Staging) Open(ctx context.Context, id uuid.UUID) (*os.File, error) {
	f, err := os.Open(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open staging file: %w", err)
	}
	return f, nil
}

func (s *Staging) Remove(ctx context.Context, id uuid.UUID) error {
	return removeIfExists(s.Path(id))
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
