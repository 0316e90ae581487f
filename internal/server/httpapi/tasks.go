package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/logging"
)

// maxUploadBytes bounds the multipart form kept in memory per upload.
const maxUploadBytes = 32 << 20

type taskHandler struct {
	tasks TaskAPI
	log   logging.Logger
}

// upload handles PUT /api/v1/ml/tasks/{model_id}: a multipart form with one
// "file" part.
func (h *taskHandler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	modelID, err := pathUUID(r, "model_id")
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(ctx, w, h.log, fmt.Errorf("%w: MALFORMED_FORM", common.ErrorBadRequest))
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(ctx, w, h.log, fmt.Errorf("%w: MISSING_FILE", common.ErrorBadRequest))
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		writeError(ctx, w, h.log, fmt.Errorf("read upload: %w", err))
		return
	}

	item, err := h.tasks.Upload(ctx, UserID(ctx),
		header.Header.Get("Content-Type"), header.Filename, data, modelID)
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// list handles GET /api/v1/ml/tasks?batch_size=&current_page=.
func (h *taskHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	currentPage, err := positiveQueryInt(r, "current_page", 1)
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}
	batchSize, err := positiveQueryInt(r, "batch_size", 0)
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}

	page, err := h.tasks.List(ctx, UserID(ctx), currentPage, batchSize)
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// get handles GET /api/v1/ml/tasks/{id}.
func (h *taskHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, err := pathUUID(r, "id")
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}

	detail, err := h.tasks.Get(ctx, UserID(ctx), taskID)
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// models handles GET /api/v1/ml/models.
func (h *taskHandler) models(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.tasks.Models(ctx)
	if err != nil {
		writeError(ctx, w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// pathUUID parses a UUID path parameter. Garbage ids are rejected here so
// they never reach the database as a syntax error.
func pathUUID(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: INVALID_%s", common.ErrorBadRequest, strings.ToUpper(name))
	}
	return id.String(), nil
}

// positiveQueryInt parses an optional positive integer query parameter.
func positiveQueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: INVALID_%s", common.ErrorBadRequest, strings.ToUpper(name))
	}
	return n, nil
}
