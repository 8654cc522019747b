package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/filekeeper/internal/byterange"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/server/models"
	"github.com/dmitrijs2005/filekeeper/internal/storage"
	"github.com/google/uuid"
)

const maxJSONBody = 1 << 20

type StagingFiles interface {
	Create(ctx context.Context, name string, mime *string) (*models.StagingFile, error)
	Get(ctx context.Context, id uuid.UUID) (*models.StagingFile, error)
	Fill(ctx context.Context, id uuid.UUID, offset int64, r io.Reader) (*models.StagingFile, error)
	Remove(ctx context.Context, id uuid.UUID, deleteBytes bool) (*models.StagingFile, error)
}

type Files interface {
	Promote(ctx context.Context, id uuid.UUID) (*models.File, error)
	Get(ctx context.Context, id uuid.UUID) (*models.File, error)
	Remove(ctx context.Context, id uuid.UUID) (*models.File, error)
	ReadData(ctx context.Context, id uuid.UUID, rng byterange.Range) (*models.File, *storage.Object, error)
}

// Handler serves the HTTP API.
type Handler struct {
	staging StagingFiles
	files   Files
	logger  logging.Logger
}

// New registers all routes and returns the root handler. Requests need a
// bearer token signed with secretKey unless it is empty.
//
// Middleware stack (outer to inner): RequestLog, Metrics, BearerAuth, ServeMux.
func New(staging StagingFiles, files Files, secretKey string, logger logging.Logger) http.Handler {
	h := &Handler{
		staging: staging,
		files:   files,
		logger:  logger.With("module", "rest"),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /staging-files", h.createStagingFile)
	mux.HandleFunc("GET /staging-files/{id}", h.getStagingFile)
	mux.HandleFunc("DELETE /staging-files/{id}", h.removeStagingFile)
	mux.HandleFunc("PUT /staging-files/{id}/data", h.fillStagingFile)

	mux.HandleFunc("POST /files/{id}", h.promoteFile)
	mux.HandleFunc("GET /files/{id}", h.getFile)
	mux.HandleFunc("DELETE /files/{id}", h.removeFile)
	mux.HandleFunc("GET /files/{id}/data", h.readFileData)

	return RequestLog(h.logger)(Metrics(BearerAuth(secretKey, h.logger)(mux)))
}

type createStagingFileRequest struct {
	Name string  `json:"name"`
	Mime *string `json:"mime"`
}

func (h *Handler) createStagingFile(w http.ResponseWriter, r *http.Request) {
	var req createStagingFileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", common.ErrorInvalidInput, err))
		return
	}

	f, err := h.staging.Create(r.Context(), req.Name, req.Mime)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) getStagingFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	f, err := h.staging.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) removeStagingFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	f, err := h.staging.Remove(r.Context(), id, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) fillStagingFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var offset int64
	if v := r.Header.Get(common.OffsetHeaderName); v != "" {
		var err error
		offset, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: bad %s header", common.ErrorInvalidInput, common.OffsetHeaderName))
			return
		}
	}

	f, err := h.staging.Fill(r.Context(), id, offset, r.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) promoteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	f, err := h.files.Promote(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	f, err := h.files.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) removeFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	f, err := h.files.Remove(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) readFileData(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	rng, err := byterange.Parse(r.Header.Get("Range"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Accept-Ranges", "bytes")

	f, obj, err := h.files.ReadData(r.Context(), id, rng)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer obj.Close()

	header := w.Header()
	header.Set("Content-Type", f.Mime)
	header.Set("Content-Length", strconv.FormatInt(obj.Length, 10))
	header.Set("ETag", fmt.Sprintf(`"%08x"`, f.Hash))
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))

	// An empty file has no byte positions to name in Content-Range.
	status := http.StatusOK
	if !rng.IsFull() && obj.Length > 0 {
		status = http.StatusPartialContent
		header.Set("Content-Range", byterange.ContentRange(obj.Offset, obj.Length, obj.Size))
	}
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj); err != nil {
		h.logger.Warn(r.Context(), "file data copy interrupted", "id", id, "error", err)
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: bad id", common.ErrorInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

type errorResponse struct {
	Error string `json:"error"`
	// Size is the staging file size after a failed write.
	Size *int64 `json:"size,omitempty"`
}

// writeError maps service errors to HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		werr *storage.WriteError
		rerr *byterange.Error
	)

	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, common.ErrorNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrorInvalidInput),
		errors.Is(err, byterange.ErrInvalidRange),
		errors.Is(err, byterange.ErrUnsupportedUnit):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrorNotYetFilled):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		status = http.StatusUnauthorized
	case errors.As(err, &rerr):
		status = http.StatusRequestedRangeNotSatisfiable
		w.Header().Set("Content-Range", byterange.UnsatisfiedContentRange(rerr.FileSize))
	case errors.As(err, &werr):
		if werr.IsIO() {
			if werr.FileSize >= 0 {
				resp.Size = &werr.FileSize
			}
		} else {
			status = http.StatusUnprocessableEntity
		}
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if resp.Size == nil {
			resp.Error = common.ErrorInternal.Error()
		}
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
