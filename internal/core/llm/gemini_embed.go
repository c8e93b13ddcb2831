package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/studyowl/studyowl/internal/core"
)

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	dim       int
}

// NewGeminiEmbedder builds the embedder. dim is the expected vector length;
// the vector column is sized to it, so responses with a different length are
// rejected here instead of failing on every chunk insert.
func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, dim int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-embedding-001"
	}
	return &GeminiEmbedder{client: cl, modelName: modelName, dim: dim}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedTexts batches all texts in one request via EmbeddingBatch. Rate
// limits and server errors come back marked transient so callers can retry.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.modelName)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classifyEmbedError(err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	if len(out) != len(texts) {
		return nil, &core.EmbeddingError{
			Err: fmt.Errorf("gemini returned %d embeddings for %d texts", len(out), len(texts)),
		}
	}
	if err := validateDims(out, g.dim); err != nil {
		return nil, err
	}
	return out, nil
}

// validateDims rejects vectors whose length does not match the configured
// embedding dimension. A dim of zero disables the check.
func validateDims(vectors [][]float32, dim int) error {
	if dim <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != dim {
			return &core.EmbeddingError{
				Err: fmt.Errorf("embedding %d has dimension %d, want %d: EMBED_DIM must match the model's output dimensionality", i, len(v), dim),
			}
		}
	}
	return nil
}

func classifyEmbedError(err error) error {
	wrapped := fmt.Errorf("gemini batch embed: %w", err)
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 429 || apiErr.Code >= 500) {
		return &core.EmbeddingError{Err: wrapped, Transient: true}
	}
	return &core.EmbeddingError{Err: wrapped}
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
