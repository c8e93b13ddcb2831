package db

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/studyowl/studyowl/internal/core"
	"github.com/studyowl/studyowl/internal/models"
)

// MemoryStore is an in-memory core.VectorStore. Similarity is computed
// application-side with the same [0,1] mapping the SQL function uses, so
// it can stand in for Postgres in tests and small single-node setups.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	files  map[string]*models.SourceFile // keyed by file path
	chunks []models.VectorChunk
}

var _ core.VectorStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		files:  make(map[string]*models.SourceFile),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateSourceFile(_ context.Context, file *models.SourceFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[file.FilePath]; ok {
		return fmt.Errorf("%w: %s", core.ErrConflict, file.FilePath)
	}
	file.ID = s.nextID
	s.nextID++
	file.CreatedAt = time.Now()
	cp := *file
	s.files[file.FilePath] = &cp
	return nil
}

func (s *MemoryStore) DeleteByPath(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.files[path]
	if !ok {
		return nil
	}
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.SourceFileID != file.ID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	delete(s.files, path)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[path]
	return ok, nil
}

func (s *MemoryStore) InsertChunk(_ context.Context, chunk *models.VectorChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk.ID = s.nextID
	s.nextID++
	chunk.CreatedAt = time.Now()
	cp := *chunk
	cp.Embedding = append([]float32(nil), chunk.Embedding...)
	s.chunks = append(s.chunks, cp)
	return nil
}

func (s *MemoryStore) VectorCount(_ context.Context, path string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.files[path]
	if !ok {
		return 0, nil
	}
	count := 0
	for _, c := range s.chunks {
		if c.SourceFileID == file.ID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListSourceFiles(_ context.Context, workspaceID string) ([]models.SourceFileSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.SourceFileSummary
	for _, f := range s.files {
		if workspaceID != "" && f.WorkspaceID != workspaceID {
			continue
		}
		sum := models.SourceFileSummary{
			ID:          f.ID,
			FilePath:    f.FilePath,
			FileName:    f.FileName,
			ContentType: f.ContentType,
			WorkspaceID: f.WorkspaceID,
			FileSize:    f.FileSize,
			CreatedAt:   f.CreatedAt,
		}
		for _, c := range s.chunks {
			if c.SourceFileID == f.ID {
				sum.ChunksCount++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Search(_ context.Context, queryVec []float32, workspaceID string, limit int, minSimilarity float64) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filesByID := make(map[int64]*models.SourceFile, len(s.files))
	for _, f := range s.files {
		filesByID[f.ID] = f
	}

	var out []models.SearchResult
	for _, c := range s.chunks {
		f, ok := filesByID[c.SourceFileID]
		if !ok {
			continue
		}
		if workspaceID != "" && f.WorkspaceID != workspaceID {
			continue
		}
		sim := cosineSimilarity(queryVec, c.Embedding)
		if sim < minSimilarity {
			continue
		}
		out = append(out, models.SearchResult{
			ChunkID:    c.ID,
			Snippet:    c.ContentText,
			FilePath:   f.FilePath,
			FileName:   f.FileName,
			Similarity: sim,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity == out[j].Similarity {
			return out[i].ChunkID < out[j].ChunkID
		}
		return out[i].Similarity > out[j].Similarity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// cosineSimilarity maps the cosine angle into [0,1]: identical vectors
// score 1.0, orthogonal 0.5, opposite 0.0. A zero vector scores 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (1 + cos) / 2
}
