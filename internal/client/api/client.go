// Package api is an HTTP client for the FileKeeper API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/byterange"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/google/uuid"
)

// Error is a non-2xx response. Size is set when the server reports the
// staging file size after a failed write.
type Error struct {
	Status  int
	Message string
	Size    *int64
}

func (e *Error) Error() string {
	return fmt.Sprintf("server responded %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses to the shared sentinels.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusBadRequest:
		return common.ErrorInvalidInput
	case http.StatusUnprocessableEntity:
		if e.Message == common.ErrorNotYetFilled.Error() {
			return common.ErrorNotYetFilled
		}
	}
	return nil
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateStagingFile(ctx context.Context, name string, mime *string) (*models.StagingFile, error) {
	body, err := json.Marshal(map[string]any{"name": name, "mime": mime})
	if err != nil {
		return nil, err
	}

	var out models.StagingFile
	if err := c.doJSON(ctx, http.MethodPost, "/staging-files", bytes.NewReader(body), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetStagingFile(ctx context.Context, id uuid.UUID) (*models.StagingFile, error) {
	var out models.StagingFile
	if err := c.doJSON(ctx, http.MethodGet, "/staging-files/"+id.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteStagingFile(ctx context.Context, id uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/staging-files/"+id.String(), nil, nil, nil)
}

// WriteChunk sends r to be written at offset of the staging file.
func (c *Client) WriteChunk(ctx context.Context, id uuid.UUID, offset int64, r io.Reader) (*models.StagingFile, error) {
	header := http.Header{}
	header.Set(common.OffsetHeaderName, strconv.FormatInt(offset, 10))
	header.Set("Content-Type", common.DefaultMimeType)

	var out models.StagingFile
	if err := c.doJSON(ctx, http.MethodPut, "/staging-files/"+id.String()+"/data", r, header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Promote(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var out models.File
	if err := c.doJSON(ctx, http.MethodPost, "/files/"+id.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var out models.File
	if err := c.doJSON(ctx, http.MethodGet, "/files/"+id.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteFile(ctx context.Context, id uuid.UUID) error {
	return c.doJSON(ctx, http.MethodDelete, "/files/"+id.String(), nil, nil, nil)
}

// Download copies rng of the file content into w and returns the number of
// bytes written.
func (c *Client) Download(ctx context.Context, id uuid.UUID, rng byterange.Range, w io.Writer) (int64, error) {
	header := http.Header{}
	if !rng.IsFull() {
		header.Set("Range", rng.String())
	}

	resp, err := c.do(ctx, http.MethodGet, "/files/"+id.String()+"/data", nil, header)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return io.Copy(w, resp.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, header http.Header, out any) error {
	resp, err := c.do(ctx, method, path, body, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends the request and turns non-2xx responses into *Error.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Response, error) {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var payload struct {
		Error string `json:"error"`
		Size  *int64 `json:"size"`
	}
	if b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && json.Unmarshal(b, &payload) == nil {
		if payload.Error != "" {
			apiErr.Message = payload.Error
		}
		apiErr.Size = payload.Size
	}
	return nil, apiErr
}

// IsStatus reports whether err is an *Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
