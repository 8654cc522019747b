package storage

import (
	"errors"
	"fmt"
)

var (
	ErrFileTooLarge          = errors.New("file too large")
	ErrOffsetExceedsFileSize = errors.New("offset exceeds file size")
	ErrOffsetTooLarge        = errors.New("offset too large")
	ErrNegativeOffset        = errors.New("negative offset")
	// ErrWrite marks an I/O failure while streaming a chunk.
	ErrWrite = errors.New("write failed")
)

// WriteError describes a rejected or failed staging write. FileSize is the
// staging object size observed after the attempt, or -1 when it is unknown;
// callers use it to keep metadata in step with the bytes actually stored.
type WriteError struct {
	Err      error
	Offset   int64
	FileSize int64
	// Limit is the maximum object size for ErrFileTooLarge and
	// ErrOffsetTooLarge.
	Limit int64
}

func (e *WriteError) Error() string {
	switch {
	case errors.Is(e.Err, ErrFileTooLarge):
		return fmt.Sprintf("%v: file size %d, max %d", ErrFileTooLarge, e.FileSize, e.Limit)
	case errors.Is(e.Err, ErrOffsetExceedsFileSize):
		return fmt.Sprintf("%v: offset %d, file size %d", ErrOffsetExceedsFileSize, e.Offset, e.FileSize)
	case errors.Is(e.Err, ErrOffsetTooLarge):
		return fmt.Sprintf("%v: offset %d, max %d", ErrOffsetTooLarge, e.Offset, e.Limit)
	case errors.Is(e.Err, ErrNegativeOffset):
		return fmt.Sprintf("%v: %d", ErrNegativeOffset, e.Offset)
	default:
		return fmt.Sprintf("%v (file size %d)", e.Err, e.FileSize)
	}
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsIO reports whether the write failed during I/O rather than validation.
func (e *WriteError) IsIO() bool {
	return errors.Is(e.Err, ErrWrite)
}
