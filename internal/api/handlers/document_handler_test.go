package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl/studyowl/internal/config"
	db "github.com/studyowl/studyowl/internal/core/database"
	"github.com/studyowl/studyowl/internal/core/extraction"
	"github.com/studyowl/studyowl/internal/jobs"
	"github.com/studyowl/studyowl/internal/services"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(t))
		seed := h.Sum64()
		vec := make([]float32, 4)
		for j := range vec {
			seed = seed*6364136223846793005 + 1442695040888963407
			vec[j] = float32(int64(seed>>33))/float32(1<<31) + 0.001
		}
		out[i] = vec
	}
	return out, nil
}

func newTestRouter(t *testing.T) (*chi.Mux, *services.IngestService) {
	t.Helper()
	svc, err := services.NewIngestService(services.Deps{
		Store:     db.NewMemoryStore(),
		Embedder:  fakeEmbedder{},
		Extractor: extraction.New(nil),
		Tracker:   jobs.NewTracker(time.Hour, nil),
		Config: &config.Config{
			ChunkSize:      10,
			ChunkOverlap:   2,
			EmbedBatchSize: 2,
			EmbedRateRPS:   1000,
			MinSimilarity:  0,
			SearchLimit:    5,
			IngestWorkers:  2,
			JobTimeout:     time.Minute,
		},
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	h := NewDocumentHandler(svc, nil)
	r := chi.NewRouter()
	r.Post("/api/documents/upload", h.UploadDocument)
	r.Get("/api/documents", h.ListDocuments)
	r.Get("/api/documents/info", h.DocumentInfo)
	r.Delete("/api/documents", h.DeleteDocument)
	r.Get("/api/jobs/{id}", h.GetJob)
	r.Post("/api/search", h.Search)
	return r, svc
}

func multipartUpload(t *testing.T, fileName, content, workspaceID string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	if workspaceID != "" {
		require.NoError(t, mw.WriteField("workspace_id", workspaceID))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func manyWords(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(parts, " ")
}

func waitForJob(t *testing.T, svc *services.IngestService, id string) jobs.Job {
	t.Helper()
	require.Eventually(t, func() bool {
		j, err := svc.GetJob(id)
		return err == nil && j.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	j, err := svc.GetJob(id)
	require.NoError(t, err)
	return j
}

func TestUploadReturnsJobAndCompletes(t *testing.T) {
	router, svc := newTestRouter(t)

	body, contentType := multipartUpload(t, "notes.txt", manyWords(25), "ws1")
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var job jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "notes.txt", job.FileName)

	final := waitForJob(t, svc, job.ID)
	assert.Equal(t, jobs.StatusCompleted, final.Status)
	assert.Equal(t, 3, final.ChunksCreated)
}

func TestUploadMissingFile(t *testing.T) {
	router, _ := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobLifecycle(t *testing.T) {
	router, svc := newTestRouter(t)

	job, err := svc.UploadAndIngest([]byte(manyWords(25)), "a.txt", "", false)
	require.NoError(t, err)
	waitForJob(t, svc, job.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, jobs.StatusCompleted, got.Status)

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/unknown", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	router, svc := newTestRouter(t)

	_, err := svc.IngestSync(context.Background(),
		[]byte("mitochondria are the powerhouse of the cell"), "bio.txt", "bio.txt", "ws1", false)
	require.NoError(t, err)

	payload := `{"query":"mitochondria are the powerhouse of the cell","workspace_id":"ws1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []struct {
			FileName   string  `json:"file_name"`
			Similarity float64 `json:"similarity"`
		} `json:"results"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "bio.txt", resp.Results[0].FileName)
	assert.InDelta(t, 1.0, resp.Results[0].Similarity, 1e-6)
}

func TestSearchRequiresQuery(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListInfoAndDelete(t *testing.T) {
	router, svc := newTestRouter(t)
	ctx := context.Background()

	_, err := svc.IngestSync(ctx, []byte(manyWords(25)), "ws1/a.txt", "a.txt", "ws1", false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/documents?workspace_id=ws1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"a.txt"`)

	req = httptest.NewRequest(http.MethodGet, "/api/documents/info?path=ws1/a.txt", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"exists":true`)
	assert.Contains(t, rec.Body.String(), `"chunks_count":3`)

	req = httptest.NewRequest(http.MethodDelete, "/api/documents?path=ws1/a.txt", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/documents?path=ws1/a.txt", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
