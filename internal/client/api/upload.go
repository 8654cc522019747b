package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/google/uuid"
)

// Uploader sends files in chunks and resumes from the size the server
// reports after a failure.
type Uploader struct {
	client    *Client
	chunkSize int64
	retries   int
}

func NewUploader(client *Client, chunkSize int64, retries int) *Uploader {
	if chunkSize <= 0 {
		chunkSize = 4 << 20
	}
	if retries <= 0 {
		retries = 1
	}
	return &Uploader{client: client, chunkSize: chunkSize, retries: retries}
}

// UploadFile creates a staging file named after path, uploads the content
// and promotes it.
func (u *Uploader) UploadFile(ctx context.Context, path string, mime *string) (*models.File, error) {
	f, size, err := openSized(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sf, err := u.client.CreateStagingFile(ctx, filepath.Base(path), mime)
	if err != nil {
		return nil, err
	}

	return u.Upload(ctx, sf.ID, f, size)
}

// ResumeFile continues an interrupted upload of path into staging file id.
func (u *Uploader) ResumeFile(ctx context.Context, id uuid.UUID, path string) (*models.File, error) {
	f, size, err := openSized(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return u.Upload(ctx, id, f, size)
}

// Upload sends the first size bytes of src to staging file id, starting
// at the size the server already holds, then promotes it.
func (u *Uploader) Upload(ctx context.Context, id uuid.UUID, src io.ReaderAt, size int64) (*models.File, error) {
	sf, err := u.client.GetStagingFile(ctx, id)
	if err != nil {
		return nil, err
	}

	offset := sf.Size
	if offset > size {
		return nil, fmt.Errorf("server holds %d bytes, source has %d", offset, size)
	}

	failures := 0
	for offset < size {
		n := min(u.chunkSize, size-offset)

		sf, err := u.client.WriteChunk(ctx, id, offset, io.NewSectionReader(src, offset, n))
		if err == nil {
			offset = sf.Size
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		failures++
		if failures >= u.retries || !retryable(err) {
			return nil, err
		}

		offset, err = u.resync(ctx, id, err)
		if err != nil {
			return nil, err
		}
	}

	return u.client.Promote(ctx, id)
}

// resync returns the size the server holds after a failed chunk.
func (u *Uploader) resync(ctx context.Context, id uuid.UUID, cause error) (int64, error) {
	var apiErr *Error
	if errors.As(cause, &apiErr) && apiErr.Size != nil {
		return *apiErr.Size, nil
	}

	sf, err := u.client.GetStagingFile(ctx, id)
	if err != nil {
		return 0, errors.Join(cause, err)
	}
	return sf.Size, nil
}

// retryable reports whether a failed chunk may be sent again: server-side
// and transport failures are, rejected requests are not.
func retryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return true
}

func openSized(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
