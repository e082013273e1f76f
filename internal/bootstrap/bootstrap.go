package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/tenderops/bidding-qa/internal/config"
	"github.com/tenderops/bidding-qa/internal/core/ports"
	"github.com/tenderops/bidding-qa/internal/core/usecase"
	"github.com/tenderops/bidding-qa/internal/infrastructure/llm/ollama"
	"github.com/tenderops/bidding-qa/internal/infrastructure/queue/nats"
	"github.com/tenderops/bidding-qa/internal/infrastructure/repository/postgres"
	"github.com/tenderops/bidding-qa/internal/infrastructure/resilience"
	"github.com/tenderops/bidding-qa/internal/infrastructure/vector/qdrant"
	"github.com/tenderops/bidding-qa/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Query   ports.QueryService
	Metrics *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	schema, err := config.LoadSchema(cfg.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	executor := postgres.NewReadOnlyExecutor(db,
		postgres.WithQueryTimeout(time.Duration(cfg.SQLQueryTimeout)*time.Second),
		postgres.WithMaxRows(cfg.SQLMaxLimit),
	)

	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.RetryMaxAttempts = cfg.ResilienceRetryAttempts
	resilienceCfg.BreakerEnabled = cfg.ResilienceBreakerOn
	llmExecutor := resilience.NewExecutor(resilienceCfg)

	ollamaClient := ollama.NewResilient(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, llmExecutor)
	embedder := ollama.NewEmbedder(ollamaClient)
	completion := ollama.NewCompletion(ollamaClient)

	vectorIndex := qdrant.New(cfg.QdrantURL)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilienceCfg),
	})
	if err != nil {
		return nil, fmt.Errorf("init audit queue: %w", err)
	}

	extractor := usecase.NewExtractor()
	router := usecase.NewRouter(completion, cfg.RouterModelThreshold)
	irGen := usecase.NewIRGenerator(completion, extractor, schema)
	schemaVal := usecase.NewSchemaValidator(schema, cfg.MaxFiltersPerIR)
	businessVal := usecase.NewBusinessValidator(cfg.AmountFloorYuan, cfg.AmountCeilingYuan)
	semanticVal := usecase.NewSemanticValidator(completion)
	translator := usecase.NewSQLTranslator(schema, cfg.SQLMaxLimit)
	retrieval := usecase.NewRetrievalEngine(embedder, vectorIndex, usecase.NewLexicalReranker(), cfg.RetrievalTopK, cfg.RetrievalTopN)

	confidenceCfg := usecase.DefaultConfidenceConfig()
	confidenceCfg.Threshold = cfg.ConfidenceThreshold
	confidence := usecase.NewConfidenceChecker(confidenceCfg)

	builder := usecase.NewContextBuilder(&schema, cfg.ContextMaxChars)
	answers := usecase.NewAnswerGenerator(completion, cfg.UncertaintyText)

	orchestrator := usecase.NewOrchestrator(
		router,
		irGen,
		schemaVal,
		businessVal,
		semanticVal,
		translator,
		executor,
		retrieval,
		confidence,
		builder,
		answers,
		queue,
		usecase.OrchestratorConfig{
			BranchTimeout:  time.Duration(cfg.BranchTimeoutSeconds) * time.Second,
			RequestTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
	)

	return &App{
		Config:  cfg,
		Query:   orchestrator,
		Metrics: metrics.NewHTTPServerMetrics("bidding-qa"),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
