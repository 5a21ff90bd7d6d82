package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkoval/chatpoint/internal/config"
	"github.com/mkoval/chatpoint/internal/core/ports"
	"github.com/mkoval/chatpoint/internal/core/usecase"
	"github.com/mkoval/chatpoint/internal/infrastructure/llm/ollama"
	"github.com/mkoval/chatpoint/internal/infrastructure/llm/openai"
	"github.com/mkoval/chatpoint/internal/infrastructure/repository/postgres"
	"github.com/mkoval/chatpoint/internal/infrastructure/resilience"
	neo4jsearch "github.com/mkoval/chatpoint/internal/infrastructure/search/neo4j"
	natsusage "github.com/mkoval/chatpoint/internal/infrastructure/usage/nats"
	"github.com/mkoval/chatpoint/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	DB       *sql.DB
	Usage    *natsusage.Tracker
	Ledger   *usecase.PointsLedger
	Pipeline ports.ChatResponder

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	ledgerRepo := postgres.NewLedgerRepository(db)
	datasetRepo := postgres.NewDatasetRepository(db)
	conversationRepo := postgres.NewConversationRepository(db)

	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	tracker, err := natsusage.NewWithOptions(cfg.NATSURL, cfg.NATSUsageSubject, natsusage.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect usage tracker: %w", err)
	}

	sparse, err := neo4jsearch.New(neo4jsearch.Config{
		URI:      cfg.Neo4jURI,
		User:     cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
		Index:    cfg.Neo4jIndex,
	})
	if err != nil {
		tracker.Close()
		_ = db.Close()
		return nil, fmt.Errorf("connect sparse search: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, 1, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	dense := qdrant.New(cfg.QdrantURL, cfg.QdrantCollectionPrefix)

	providers, err := buildProviders(cfg, ollamaClient, executor)
	if err != nil {
		sparse.Close(ctx)
		tracker.Close()
		_ = db.Close()
		return nil, err
	}

	retriever := usecase.NewEvidenceRetriever(datasetRepo, embedder, dense, sparse, usecase.RetrievalConfig{
		TopK:            cfg.RetrievalTopK,
		RRFK:            cfg.RetrievalRRFK,
		CandidateFactor: cfg.RetrievalCandidateFactor,
	})
	ledger := usecase.NewPointsLedger(ledgerRepo, cfg.LowBalanceThreshold, cfg.TrialGrantAmount)
	orchestrator := usecase.NewGenerationOrchestrator(providers, tracker)

	pipeline := usecase.NewChatPipeline(retriever, ledger, orchestrator, conversationRepo, usecase.ChatPipelineConfig{
		PointsPerResponse: cfg.PointsPerResponse,
		RetrievalTopK:     cfg.RetrievalTopK,
		Channels: usecase.ChannelSettings{
			MessagingBudget:   cfg.MessagingBudget,
			MessagingMaxChars: cfg.MessagingMaxChars,
			WelcomeMessage:    cfg.WelcomeMessage,
		},
	})

	return &App{
		Config:   cfg,
		DB:       db,
		Usage:    tracker,
		Ledger:   ledger,
		Pipeline: pipeline,

		closeFn: func() {
			sparse.Close(context.Background())
			tracker.Close()
			_ = db.Close()
		},
	}, nil
}

// buildProviders assembles the fallback chain. The providers file wins when
// configured; otherwise the chain is Ollama first plus OpenAI when a key is
// present.
func buildProviders(cfg config.Config, ollamaClient *ollama.Client, executor *resilience.Executor) ([]ports.Provider, error) {
	specs, err := config.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}

	if len(specs) == 0 {
		providers := []ports.Provider{ollamaClient}
		if cfg.OpenAIAPIKey != "" {
			providers = append(providers, openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, 2, executor))
		}
		return providers, nil
	}

	providers := make([]ports.Provider, 0, len(specs))
	for _, spec := range specs {
		switch spec.Name {
		case "ollama":
			providers = append(providers, ollama.New(spec.BaseURL, spec.Model, cfg.OllamaEmbedModel, spec.Priority, executor))
		case "openai":
			providers = append(providers, openai.New(spec.BaseURL, spec.APIKey(), spec.Model, spec.Priority, executor))
		default:
			return nil, fmt.Errorf("unknown provider %q in providers file", spec.Name)
		}
	}
	return providers, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
