package models

import (
	"time"
)

// SourceFile represents one ingested document. The file path (storage key)
// is the identity: it is unique across the store and re-ingesting the same
// path either conflicts or replaces, never merges.
type SourceFile struct {
	ID          int64     `db:"id" json:"id"`
	FilePath    string    `db:"file_path" json:"file_path"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	WorkspaceID string    `db:"workspace_id" json:"workspace_id"`
	FileSize    int64     `db:"file_size" json:"file_size,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// VectorChunk is one retrievable unit of text with its embedding.
// Chunks are immutable after creation and die with their SourceFile.
type VectorChunk struct {
	ID           int64     `db:"id" json:"id"`
	SourceFileID int64     `db:"source_file_id" json:"source_file_id"`
	ContentText  string    `db:"content_text" json:"content_text"`
	Embedding    []float32 `db:"embedding" json:"embedding"` // pgvector column
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SourceFileSummary is what ingest and list operations report back:
// the file record plus how many chunks it currently holds.
type SourceFileSummary struct {
	ID          int64     `json:"id"`
	FilePath    string    `json:"file_path"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	WorkspaceID string    `json:"workspace_id"`
	FileSize    int64     `json:"file_size,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ChunksCount int       `json:"chunks_count"`
}

// SearchResult is one ranked hit from a similarity query.
type SearchResult struct {
	ChunkID    int64   `json:"chunk_id"`
	Snippet    string  `json:"snippet"`
	FilePath   string  `json:"file_path"`
	FileName   string  `json:"file_name"`
	Similarity float64 `json:"similarity"`
}
