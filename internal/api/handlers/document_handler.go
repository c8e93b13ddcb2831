package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/studyowl/studyowl/internal/core"
	"github.com/studyowl/studyowl/internal/models"
	"github.com/studyowl/studyowl/internal/services"
)

const maxUploadBytes = 52 << 20 // 52 MB

type DocumentHandler struct {
	ingest *services.IngestService
	logger *zap.Logger
}

func NewDocumentHandler(ingest *services.IngestService, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{ingest: ingest, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps pipeline errors onto HTTP statuses.
func statusForError(err error) int {
	var unsupported *core.UnsupportedTypeError
	var extraction *core.ExtractionError
	switch {
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNoChunks),
		errors.As(err, &unsupported),
		errors.As(err, &extraction):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// UploadDocument accepts a multipart upload and schedules background
// ingestion. Responds 202 with the job to poll.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}

	// strip any path components from the client-supplied name
	fileName := filepath.Base(header.Filename)
	workspaceID := r.FormValue("workspace_id")
	replace := r.FormValue("replace") == "true"

	job, err := h.ingest.UploadAndIngest(data, fileName, workspaceID, replace)
	if err != nil {
		h.logger.Error("upload scheduling failed", zap.String("file", fileName), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "could not schedule processing")
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

type uploadURLRequest struct {
	FileName    string `json:"file_name"`
	WorkspaceID string `json:"workspace_id"`
}

// CreateUploadURL returns a presigned PUT URL so large files go straight to
// object storage. The client calls ConfirmUpload with the returned key.
func (h *DocumentHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileName == "" {
		writeError(w, http.StatusBadRequest, "file_name is required")
		return
	}

	url, key, err := h.ingest.PresignUpload(r.Context(), filepath.Base(req.FileName), req.WorkspaceID)
	if err != nil {
		h.logger.Error("presign failed", zap.String("file", req.FileName), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create upload url")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"upload_url": url, "key": key})
}

type confirmUploadRequest struct {
	Key         string `json:"key"`
	WorkspaceID string `json:"workspace_id"`
	Replace     bool   `json:"replace"`
}

// ConfirmUpload ingests an object the client already PUT to storage.
func (h *DocumentHandler) ConfirmUpload(w http.ResponseWriter, r *http.Request) {
	var req confirmUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	res, err := h.ingest.ProcessFromStorage(r.Context(), req.Key, req.WorkspaceID, req.Replace)
	if err != nil {
		h.logger.Warn("confirm-upload ingestion failed", zap.String("key", req.Key), zap.Error(err))
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *DocumentHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.ingest.GetJob(id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type searchRequest struct {
	Query         string  `json:"query"`
	WorkspaceID   string  `json:"workspace_id"`
	Limit         int     `json:"limit"`
	MinSimilarity float64 `json:"min_similarity"`
}

func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	req.MinSimilarity = -1 // distinguish "absent" from an explicit zero
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := h.ingest.Search(r.Context(), req.Query, req.WorkspaceID, req.Limit, req.MinSimilarity)
	if err != nil {
		h.logger.Error("search failed", zap.Error(err))
		writeError(w, statusForError(err), "search failed")
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace_id")

	docs, err := h.ingest.ListDocuments(r.Context(), workspaceID)
	if err != nil {
		h.logger.Error("list documents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}
	if docs == nil {
		docs = []models.SourceFileSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) DocumentInfo(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	exists, chunks, err := h.ingest.DocumentInfo(r.Context(), path)
	if err != nil {
		h.logger.Error("document info failed", zap.String("path", path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not fetch document info")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_path":    path,
		"exists":       exists,
		"chunks_count": chunks,
	})
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	if err := h.ingest.Delete(r.Context(), path); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", path))
			return
		}
		h.logger.Error("delete failed", zap.String("path", path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": path})
}
