package core

import (
	"context"
	"io"
	"time"

	"github.com/studyowl/studyowl/internal/models"
)

// VectorStore persists source files with their chunk vectors and answers
// similarity queries. It abstracts Postgres/pgvector so higher layers never
// depend on a specific backend.
type VectorStore interface {
	// CreateSourceFile inserts a new record. Returns ErrConflict when the
	// file path already exists; callers must check or delete first.
	CreateSourceFile(ctx context.Context, file *models.SourceFile) error

	// DeleteByPath removes the source file at path and all of its chunks.
	// Deleting an absent path is a no-op.
	DeleteByPath(ctx context.Context, path string) error

	Exists(ctx context.Context, path string) (bool, error)

	InsertChunk(ctx context.Context, chunk *models.VectorChunk) error

	// VectorCount reports how many chunks are stored for the given path.
	VectorCount(ctx context.Context, path string) (int, error)

	ListSourceFiles(ctx context.Context, workspaceID string) ([]models.SourceFileSummary, error)

	// Search ranks stored chunks by cosine similarity against queryVec.
	// Similarity maps cosine distance [0,2] onto [1,0] via 1 - d/2, so an
	// identical vector scores 1.0. Results are filtered to
	// similarity >= minSimilarity, optionally restricted to workspaceID
	// (empty means all workspaces), ordered by similarity descending with
	// chunk id as the tie-break, and truncated to limit.
	Search(ctx context.Context, queryVec []float32, workspaceID string, limit int, minSimilarity float64) ([]models.SearchResult, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	// PresignUploadURL issues a time-limited URL a client can PUT the file
	// bytes to directly, bypassing the API process.
	PresignUploadURL(ctx context.Context, bucket, key, contentType string, expiry time.Duration) (string, error)
}

// EmbeddingProvider converts text into fixed-length vectors. Failures should
// be wrapped in EmbeddingError so callers can tell transient rate limiting
// from permanent input problems.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
}

// TextExtractor converts raw file bytes plus a declared extension into plain
// text. Implementations dispatch per format with ordered fallback strategies.
type TextExtractor interface {
	Extract(data []byte, extension string) (string, error)
}
