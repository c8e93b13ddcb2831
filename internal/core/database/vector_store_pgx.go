package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/studyowl/studyowl/internal/config"
	"github.com/studyowl/studyowl/internal/core"
	"github.com/studyowl/studyowl/internal/models"
)

const uniqueViolation = "23505"

// VectorStore implements core.VectorStore on Postgres with pgvector.
type VectorStore struct {
	db *sql.DB
}

var _ core.VectorStore = (*VectorStore)(nil)

func NewVectorStore(ctx context.Context, cfg *config.Config) (*VectorStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector store configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, sqlDB, cfg.EmbedDim); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &VectorStore{db: sqlDB}, nil
}

func (s *VectorStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *VectorStore) CreateSourceFile(ctx context.Context, file *models.SourceFile) error {
	if file == nil {
		return errors.New("nil source file")
	}
	const q = `
		INSERT INTO source_files (file_path, file_name, content_type, workspace_id, file_size)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0))
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, q,
		file.FilePath, file.FileName, file.ContentType, file.WorkspaceID, file.FileSize,
	).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", core.ErrConflict, file.FilePath)
		}
		return fmt.Errorf("create source file: %w", err)
	}
	return nil
}

// DeleteByPath removes the chunks first and then the source file, mirroring
// the cascade so the two deletes stay in one transaction.
func (s *VectorStore) DeleteByPath(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	const delChunks = `
		DELETE FROM vector_chunks
		WHERE source_file_id IN (SELECT id FROM source_files WHERE file_path = $1)
	`
	if _, err := tx.ExecContext(ctx, delChunks, path); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM source_files WHERE file_path = $1`, path); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete source file: %w", err)
	}
	return tx.Commit()
}

func (s *VectorStore) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM source_files WHERE file_path = $1)`, path,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}
	return exists, nil
}

func (s *VectorStore) InsertChunk(ctx context.Context, chunk *models.VectorChunk) error {
	if chunk == nil {
		return errors.New("nil chunk")
	}
	const q = `
		INSERT INTO vector_chunks (source_file_id, content_text, embedding)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	vec := pgvector.NewVector(chunk.Embedding)
	err := s.db.QueryRowContext(ctx, q, chunk.SourceFileID, chunk.ContentText, vec).
		Scan(&chunk.ID, &chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

func (s *VectorStore) VectorCount(ctx context.Context, path string) (int, error) {
	const q = `
		SELECT COUNT(v.id)
		FROM vector_chunks v
		JOIN source_files sf ON sf.id = v.source_file_id
		WHERE sf.file_path = $1
	`
	var count int
	if err := s.db.QueryRowContext(ctx, q, path).Scan(&count); err != nil {
		return 0, fmt.Errorf("vector count: %w", err)
	}
	return count, nil
}

func (s *VectorStore) ListSourceFiles(ctx context.Context, workspaceID string) ([]models.SourceFileSummary, error) {
	const q = `
		SELECT sf.id, sf.file_path, sf.file_name, sf.content_type, sf.workspace_id,
		       COALESCE(sf.file_size, 0), sf.created_at, COUNT(v.id)
		FROM source_files sf
		LEFT JOIN vector_chunks v ON v.source_file_id = sf.id
		WHERE ($1 = '' OR sf.workspace_id = $1)
		GROUP BY sf.id
		ORDER BY sf.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, q, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list source files: %w", err)
	}
	defer rows.Close()

	var out []models.SourceFileSummary
	for rows.Next() {
		var f models.SourceFileSummary
		if err := rows.Scan(
			&f.ID, &f.FilePath, &f.FileName, &f.ContentType, &f.WorkspaceID,
			&f.FileSize, &f.CreatedAt, &f.ChunksCount,
		); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Search ranks chunks by the cosine_similarity SQL function installed at
// bootstrap. Equal similarities order by chunk id so results are stable.
func (s *VectorStore) Search(ctx context.Context, queryVec []float32, workspaceID string, limit int, minSimilarity float64) ([]models.SearchResult, error) {
	const q = `
		SELECT v.id, v.content_text, sf.file_path, sf.file_name,
		       cosine_similarity(v.embedding, $1) AS similarity
		FROM vector_chunks v
		JOIN source_files sf ON sf.id = v.source_file_id
		WHERE cosine_similarity(v.embedding, $1) >= $2
		  AND ($3 = '' OR sf.workspace_id = $3)
		ORDER BY similarity DESC, v.id ASC
		LIMIT $4
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := s.db.QueryContext(ctx, q, vec, minSimilarity, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.ChunkID, &r.Snippet, &r.FilePath, &r.FileName, &r.Similarity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
