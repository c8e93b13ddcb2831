package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/studyowl/studyowl/internal/config"
	"github.com/studyowl/studyowl/internal/core"
	db "github.com/studyowl/studyowl/internal/core/database"
	"github.com/studyowl/studyowl/internal/core/extraction"
	"github.com/studyowl/studyowl/internal/core/llm"
	objectclient "github.com/studyowl/studyowl/internal/core/object-client"
	"github.com/studyowl/studyowl/internal/jobs"
	"github.com/studyowl/studyowl/internal/services"
)

type App struct {
	Store   core.VectorStore
	Ingest  *services.IngestService
	Server  *Server
	Logger  *zap.Logger
	tracker *jobs.Tracker

	embedder *llm.GeminiEmbedder
	llm      *llm.GeminiLLM
	cancel   context.CancelFunc
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	initCtx, cancelInit := context.WithTimeout(ctx, 5*time.Minute)
	defer cancelInit()

	store, err := db.NewVectorStore(initCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized and bootstrapped")

	objClient, err := objectclient.NewS3Client(initCtx, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	embedder, err := llm.NewGeminiEmbedder(initCtx, cfg.AIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(initCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("initialize llm: %w", err)
	}

	tracker := jobs.NewTracker(cfg.JobTTL, logger)
	sweepCtx, cancel := context.WithCancel(context.Background())
	tracker.StartSweeper(sweepCtx, 10*time.Minute)

	ingest, err := services.NewIngestService(services.Deps{
		Store:     store,
		Embedder:  embedder,
		Extractor: extraction.New(logger),
		Objects:   objClient,
		Tracker:   tracker,
		Logger:    logger,
		Config:    cfg,
	})
	if err != nil {
		cancel()
		_ = store.Close()
		_ = embedder.Close()
		_ = llmProvider.Close()
		return nil, err
	}

	chat := services.NewChatService(ingest, llmProvider, logger)
	server := NewServer(cfg, ingest, chat, logger)

	return &App{
		Store:    store,
		Ingest:   ingest,
		Server:   server,
		Logger:   logger,
		tracker:  tracker,
		embedder: embedder,
		llm:      llmProvider,
		cancel:   cancel,
	}, nil
}

func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Ingest != nil {
		a.Ingest.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.llm != nil {
		_ = a.llm.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
