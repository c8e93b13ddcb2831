package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/studyowl/studyowl/internal/core"
	"github.com/studyowl/studyowl/internal/models"
)

const chatSystemPrompt = "You are a study assistant answering based only on the provided document excerpts. If the excerpts do not contain the answer, say 'I cannot find this in your documents.'"

// ChatService answers questions over indexed documents: retrieve the most
// relevant chunks, then ask the LLM with those chunks as context.
type ChatService struct {
	ingest *IngestService
	llm    core.LLMProvider
	logger *zap.Logger
}

func NewChatService(ingest *IngestService, llm core.LLMProvider, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{ingest: ingest, llm: llm, logger: logger}
}

type ChatAnswer struct {
	Answer  string                `json:"answer"`
	Sources []models.SearchResult `json:"sources"`
}

func (c *ChatService) Query(ctx context.Context, question, workspaceID string) (*ChatAnswer, error) {
	results, err := c.ingest.Search(ctx, question, workspaceID, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(results) == 0 {
		return &ChatAnswer{Answer: "I cannot find anything relevant in your documents."}, nil
	}

	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("[%s]\n%s\n---\n", r.FileName, r.Snippet))
	}
	userPrompt := fmt.Sprintf("Context:\n%s\nQuestion: %s", sb.String(), question)

	answer, err := c.llm.Generate(ctx, chatSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	c.logger.Debug("chat query answered",
		zap.String("workspace", workspaceID), zap.Int("sources", len(results)))

	return &ChatAnswer{Answer: answer, Sources: results}, nil
}
