package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/studyowl/studyowl/internal/config"
	"github.com/studyowl/studyowl/internal/core"
	"github.com/studyowl/studyowl/internal/core/chunker"
	"github.com/studyowl/studyowl/internal/core/extraction"
	"github.com/studyowl/studyowl/internal/jobs"
	"github.com/studyowl/studyowl/internal/models"
)

// IngestService runs the document pipeline: extract, chunk, embed, persist.
// Async uploads run on a bounded worker pool with progress reported through
// the job tracker.
type IngestService struct {
	store     core.VectorStore
	embedder  core.EmbeddingProvider
	extractor core.TextExtractor
	objects   core.ObjectClient
	chunks    *chunker.Chunker
	tracker   *jobs.Tracker
	pool      *ants.Pool
	limiter   *rate.Limiter
	logger    *zap.Logger

	bucket        string
	batchSize     int
	jobTimeout    time.Duration
	minSimilarity float64
	searchLimit   int

	retryInitial time.Duration
	retryMax     uint64
}

type IngestResult struct {
	SourceFileID  int64  `json:"source_file_id"`
	FilePath      string `json:"file_path"`
	ChunksCreated int    `json:"chunks_created"`
}

type Deps struct {
	Store     core.VectorStore
	Embedder  core.EmbeddingProvider
	Extractor core.TextExtractor
	Objects   core.ObjectClient
	Tracker   *jobs.Tracker
	Logger    *zap.Logger
	Config    *config.Config
}

func NewIngestService(d Deps) (*IngestService, error) {
	cfg := d.Config
	if cfg == nil {
		return nil, fmt.Errorf("ingest service requires config")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	workers := cfg.IngestWorkers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("ingest worker pool: %w", err)
	}

	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	rps := cfg.EmbedRateRPS
	if rps <= 0 {
		rps = 2
	}

	return &IngestService{
		store:         d.Store,
		embedder:      d.Embedder,
		extractor:     d.Extractor,
		objects:       d.Objects,
		chunks:        chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		tracker:       d.Tracker,
		pool:          pool,
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		logger:        logger,
		bucket:        cfg.BucketName,
		batchSize:     batchSize,
		jobTimeout:    cfg.JobTimeout,
		minSimilarity: cfg.MinSimilarity,
		searchLimit:   cfg.SearchLimit,
		retryInitial:  500 * time.Millisecond,
		retryMax:      3,
	}, nil
}

func (s *IngestService) Close() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// IngestSync runs the full pipeline inline and returns once the chunks are
// persisted. Used for small files and confirm-upload flows.
func (s *IngestService) IngestSync(ctx context.Context, data []byte, filePath, fileName, workspaceID string, replace bool) (*IngestResult, error) {
	return s.ingest(ctx, data, filePath, fileName, workspaceID, replace, nil)
}

// UploadAndIngest stores a copy of the file in object storage, registers a
// job and schedules processing on the worker pool. The returned job can be
// polled for progress.
func (s *IngestService) UploadAndIngest(data []byte, fileName, workspaceID string, replace bool) (jobs.Job, error) {
	job := s.tracker.Create(fileName, int64(len(data)))

	err := s.pool.Submit(func() {
		s.runJob(job.ID, data, fileName, workspaceID, replace)
	})
	if err != nil {
		_ = s.tracker.Update(job.ID, jobs.StatusFailed, "Could not schedule processing",
			jobs.WithErrorDetails(err.Error()))
		return jobs.Job{}, fmt.Errorf("schedule ingestion: %w", err)
	}
	return job, nil
}

func (s *IngestService) runJob(jobID string, data []byte, fileName, workspaceID string, replace bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	_ = s.tracker.Update(jobID, jobs.StatusProcessing, "Extracting text")

	key := storageKey(workspaceID, fileName)

	res, err := s.ingest(ctx, data, key, fileName, workspaceID, replace, func(msg string) {
		_ = s.tracker.Update(jobID, jobs.StatusProcessing, msg)
	})
	if err != nil {
		s.logger.Error("ingestion job failed",
			zap.String("job_id", jobID), zap.String("file", fileName), zap.Error(err))
		_ = s.tracker.Update(jobID, jobs.StatusFailed, "Processing failed",
			jobs.WithErrorDetails(err.Error()))
		return
	}

	// the object copy is written only after the pipeline accepts the
	// document, so a rejected duplicate never touches the stored object
	if s.objects != nil {
		contentType := extraction.ContentTypeForExtension(extensionOf(fileName))
		if _, err := s.objects.UploadFile(ctx, s.bucket, key, bytes.NewReader(data), contentType); err != nil {
			s.logger.Warn("object storage upload failed",
				zap.String("key", key), zap.Error(err))
		}
	}

	_ = s.tracker.Update(jobID, jobs.StatusCompleted,
		fmt.Sprintf("Created %d chunks", res.ChunksCreated),
		jobs.WithChunksCreated(res.ChunksCreated))
}

// ProcessFromStorage fetches a previously uploaded object and ingests it
// inline. Used by the confirm-upload flow after a presigned PUT.
func (s *IngestService) ProcessFromStorage(ctx context.Context, key, workspaceID string, replace bool) (*IngestResult, error) {
	if s.objects == nil {
		return nil, fmt.Errorf("object storage not configured")
	}
	data, err := s.objects.GetFile(ctx, s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("fetch uploaded object: %w", err)
	}
	return s.ingest(ctx, data, key, path.Base(key), workspaceID, replace, nil)
}

// PresignUpload issues a signed PUT URL for direct client uploads and
// returns the object key the client must confirm with afterwards.
func (s *IngestService) PresignUpload(ctx context.Context, fileName, workspaceID string) (url, key string, err error) {
	if s.objects == nil {
		return "", "", fmt.Errorf("object storage not configured")
	}
	key = storageKey(workspaceID, fileName)
	contentType := extraction.ContentTypeForExtension(extensionOf(fileName))
	url, err = s.objects.PresignUploadURL(ctx, s.bucket, key, contentType, 15*time.Minute)
	if err != nil {
		return "", "", err
	}
	return url, key, nil
}

func (s *IngestService) ingest(ctx context.Context, data []byte, filePath, fileName, workspaceID string, replace bool, progress func(string)) (*IngestResult, error) {
	// conflict policy is decided before any extraction work: a duplicate
	// path must always surface ErrConflict, never an extraction error
	exists, err := s.store.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("existence check: %w", err)
	}
	if exists {
		if !replace {
			return nil, fmt.Errorf("%w: %s", core.ErrConflict, filePath)
		}
		if err := s.store.DeleteByPath(ctx, filePath); err != nil {
			return nil, fmt.Errorf("replace existing document: %w", err)
		}
	}

	text, err := s.extractor.Extract(data, extensionOf(fileName))
	if err != nil {
		return nil, err
	}

	chunks := s.chunks.Chunk(text)
	if len(chunks) == 0 {
		return nil, core.ErrNoChunks
	}

	file := &models.SourceFile{
		FilePath:    filePath,
		FileName:    fileName,
		ContentType: extraction.ContentTypeForExtension(extensionOf(fileName)),
		WorkspaceID: workspaceID,
		FileSize:    int64(len(data)),
	}
	if err := s.store.CreateSourceFile(ctx, file); err != nil {
		return nil, err
	}

	created := 0
	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		if progress != nil {
			progress(fmt.Sprintf("Processing chunks %d-%d of %d", start+1, end, len(chunks)))
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := s.embedWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start+1, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}

		for i, vec := range vectors {
			chunk := &models.VectorChunk{
				SourceFileID: file.ID,
				ContentText:  batch[i],
				Embedding:    vec,
			}
			if err := s.store.InsertChunk(ctx, chunk); err != nil {
				return nil, fmt.Errorf("persist chunk: %w", err)
			}
			created++
		}
	}

	s.logger.Info("document ingested",
		zap.String("file_path", filePath),
		zap.String("workspace", workspaceID),
		zap.Int("chunks", created))

	return &IngestResult{SourceFileID: file.ID, FilePath: filePath, ChunksCreated: created}, nil
}

// embedWithRetry retries transient embedding failures with exponential
// backoff. Permanent failures surface immediately.
func (s *IngestService) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	op := func() error {
		v, err := s.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			if core.IsTransientEmbedding(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		vectors = v
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryInitial
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, s.retryMax), ctx))
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// Search embeds the query and returns the best-matching chunks. Zero limit
// and negative threshold fall back to the configured defaults.
func (s *IngestService) Search(ctx context.Context, query, workspaceID string, limit int, minSimilarity float64) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if limit <= 0 {
		limit = s.searchLimit
	}
	if minSimilarity < 0 {
		minSimilarity = s.minSimilarity
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vectors, err := s.embedWithRetry(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for query", len(vectors))
	}

	return s.store.Search(ctx, vectors[0], workspaceID, limit, minSimilarity)
}

// Delete removes a document's record, chunks and stored object.
func (s *IngestService) Delete(ctx context.Context, filePath string) error {
	exists, err := s.store.Exists(ctx, filePath)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrNotFound, filePath)
	}
	if err := s.store.DeleteByPath(ctx, filePath); err != nil {
		return err
	}
	if s.objects != nil {
		if err := s.objects.DeleteFile(ctx, s.bucket, filePath); err != nil {
			s.logger.Warn("object storage delete failed",
				zap.String("key", filePath), zap.Error(err))
		}
	}
	return nil
}

func (s *IngestService) GetJob(id string) (jobs.Job, error) {
	return s.tracker.Get(id)
}

func (s *IngestService) ListDocuments(ctx context.Context, workspaceID string) ([]models.SourceFileSummary, error) {
	return s.store.ListSourceFiles(ctx, workspaceID)
}

// DocumentInfo reports whether a path is indexed and how many chunks back it.
func (s *IngestService) DocumentInfo(ctx context.Context, filePath string) (exists bool, chunks int, err error) {
	exists, err = s.store.Exists(ctx, filePath)
	if err != nil || !exists {
		return exists, 0, err
	}
	chunks, err = s.store.VectorCount(ctx, filePath)
	return exists, chunks, err
}

func storageKey(workspaceID, fileName string) string {
	if workspaceID == "" {
		return fileName
	}
	return workspaceID + "/" + fileName
}

func extensionOf(fileName string) string {
	return strings.TrimPrefix(path.Ext(fileName), ".")
}
