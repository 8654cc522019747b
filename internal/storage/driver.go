// Package storage defines the Driver contract for where staged and resident
// bytes live, and the errors drivers report.
//
// Every object is addressed by the upload id. A driver keeps two namespaces:
// staging objects are written in chunks while an upload is in progress,
// resident objects are immutable once committed.
package storage

import (
	"context"
	"io"

	"github.com/dmitrijs2005/filekeeper/internal/byterange"
	"github.com/google/uuid"
)

// Driver is implemented by every storage backend.
type Driver interface {
	// WriteStaging writes r into the staging object for id starting at
	// offset and returns the object size after the write. Failures are
	// reported as *WriteError.
	WriteStaging(ctx context.Context, id uuid.UUID, offset int64, r io.Reader) (int64, error)

	// RemoveStaging deletes the staging object. A missing object is not an error.
	RemoveStaging(ctx context.Context, id uuid.UUID) error

	// ReadStaging opens the staging object, or returns common.ErrorNotFound.
	ReadStaging(ctx context.Context, id uuid.UUID) (io.ReadSeekCloser, error)

	// CommitStaging moves the staging object into the resident namespace.
	// Calling it again after a successful commit is a no-op.
	CommitStaging(ctx context.Context, id uuid.UUID) error

	// Remove deletes the resident object. A missing object is not an error.
	Remove(ctx context.Context, id uuid.UUID) error

	// Read opens the resident object bounded to rng, or returns
	// common.ErrorNotFound. Out-of-bounds ranges yield *byterange.Error.
	Read(ctx context.Context, id uuid.UUID, rng byterange.Range) (*Object, error)
}

// Object is a bounded read of a resident object.
type Object struct {
	io.ReadCloser
	// Offset is the position of the first returned byte.
	Offset int64
	// Length is the number of bytes the reader yields.
	Length int64
	// Size is the total size of the object.
	Size int64
}

// Partial reports whether the object covers less than the whole resident object.
func (o *Object) Partial() bool {
	return o.Offset != 0 || o.Length != o.Size
}

// LimitedReadCloser bounds a reader while closing the underlying source.
type LimitedReadCloser struct {
	io.Reader
	io.Closer
}

// NewLimitedReadCloser returns rc limited to n bytes.
func NewLimitedReadCloser(rc io.ReadCloser, n int64) *LimitedReadCloser {
	return &LimitedReadCloser{Reader: io.LimitReader(rc, n), Closer: rc}
}
