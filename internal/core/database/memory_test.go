package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl/studyowl/internal/core"
	"github.com/studyowl/studyowl/internal/models"
)

func addFile(t *testing.T, s *MemoryStore, path, workspace string) *models.SourceFile {
	t.Helper()
	f := &models.SourceFile{
		FilePath:    path,
		FileName:    path,
		ContentType: "text/plain",
		WorkspaceID: workspace,
	}
	require.NoError(t, s.CreateSourceFile(context.Background(), f))
	return f
}

func addChunk(t *testing.T, s *MemoryStore, fileID int64, text string, embedding []float32) *models.VectorChunk {
	t.Helper()
	c := &models.VectorChunk{
		SourceFileID: fileID,
		ContentText:  text,
		Embedding:    embedding,
	}
	require.NoError(t, s.InsertChunk(context.Background(), c))
	return c
}

func TestMemoryStoreCreateConflict(t *testing.T) {
	s := NewMemoryStore()
	addFile(t, s, "notes/a.txt", "ws1")

	err := s.CreateSourceFile(context.Background(), &models.SourceFile{FilePath: "notes/a.txt"})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestMemoryStoreDeleteCascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	f := addFile(t, s, "notes/a.txt", "ws1")
	addChunk(t, s, f.ID, "one", []float32{1, 0})
	addChunk(t, s, f.ID, "two", []float32{0, 1})

	other := addFile(t, s, "notes/b.txt", "ws1")
	addChunk(t, s, other.ID, "kept", []float32{1, 1})

	require.NoError(t, s.DeleteByPath(ctx, "notes/a.txt"))

	exists, err := s.Exists(ctx, "notes/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	count, err := s.VectorCount(ctx, "notes/b.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// deleting an absent path is a no-op
	require.NoError(t, s.DeleteByPath(ctx, "notes/missing.txt"))
}

func TestMemoryStoreVectorCount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	f := addFile(t, s, "doc.md", "")
	addChunk(t, s, f.ID, "a", []float32{1, 0})
	addChunk(t, s, f.ID, "b", []float32{0, 1})

	count, err := s.VectorCount(ctx, "doc.md")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = s.VectorCount(ctx, "missing.md")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryStoreListSourceFiles(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := addFile(t, s, "a.txt", "ws1")
	addChunk(t, s, a.ID, "x", []float32{1, 0})
	addChunk(t, s, a.ID, "y", []float32{0, 1})
	addFile(t, s, "b.txt", "ws2")

	all, err := s.ListSourceFiles(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ws1, err := s.ListSourceFiles(ctx, "ws1")
	require.NoError(t, err)
	require.Len(t, ws1, 1)
	assert.Equal(t, "a.txt", ws1[0].FilePath)
	assert.Equal(t, 2, ws1[0].ChunksCount)
}

func TestMemoryStoreSearchRankingAndThreshold(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	f := addFile(t, s, "doc.txt", "ws1")
	addChunk(t, s, f.ID, "aligned", []float32{1, 0})
	addChunk(t, s, f.ID, "orthogonal", []float32{0, 1})
	addChunk(t, s, f.ID, "opposite", []float32{-1, 0})

	results, err := s.Search(ctx, []float32{1, 0}, "ws1", 10, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "aligned", results[0].Snippet)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.Equal(t, "orthogonal", results[1].Snippet)
	assert.InDelta(t, 0.5, results[1].Similarity, 1e-9)
	assert.Equal(t, "opposite", results[2].Snippet)
	assert.InDelta(t, 0.0, results[2].Similarity, 1e-9)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.0)
		assert.LessOrEqual(t, r.Similarity, 1.0)
	}

	// threshold cuts off the low scorers
	results, err = s.Search(ctx, []float32{1, 0}, "ws1", 10, 0.6)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "aligned", results[0].Snippet)
}

func TestMemoryStoreSearchTieBreakByChunkID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	f := addFile(t, s, "doc.txt", "")
	first := addChunk(t, s, f.ID, "first", []float32{1, 0})
	second := addChunk(t, s, f.ID, "second", []float32{2, 0})

	results, err := s.Search(ctx, []float32{1, 0}, "", 10, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, first.ID, results[0].ChunkID)
	assert.Equal(t, second.ID, results[1].ChunkID)
}

func TestMemoryStoreSearchWorkspaceFilterAndLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := addFile(t, s, "a.txt", "ws1")
	addChunk(t, s, a.ID, "ws1 chunk", []float32{1, 0})
	b := addFile(t, s, "b.txt", "ws2")
	addChunk(t, s, b.ID, "ws2 chunk", []float32{1, 0})

	results, err := s.Search(ctx, []float32{1, 0}, "ws2", 10, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ws2 chunk", results[0].Snippet)

	results, err = s.Search(ctx, []float32{1, 0}, "", 1, 0.0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 0}))
}
