package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/ddq-assistant/internal/config"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
	"github.com/kirillkom/ddq-assistant/internal/core/usecase"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/embedding/hash"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/llm"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/llm/extractive"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/queue/local"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/repository/memory"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/storage/localfs"
	vectormemory "github.com/kirillkom/ddq-assistant/internal/infrastructure/vector/memory"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/workerpool"
	"github.com/kirillkom/ddq-assistant/internal/observability/metrics"
)

const requestTimeout = 30 * time.Minute

type App struct {
	Config   config.Config
	Service  string
	Provider llm.Preset

	Store ports.Store
	Queue ports.MessageQueue

	Documents  *usecase.IndexDocumentUseCase
	Projects   *usecase.ProjectUseCase
	Answers    *usecase.OrchestratorUseCase
	Requests   *usecase.RequestUseCase
	Evaluation *usecase.EvaluateUseCase
	Retriever  ports.Retriever

	Pipeline      *metrics.PipelineMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closers []func()
}

// New wires every component from cfg. Collectors are registered on registry;
// nil gives the app its own registry, exposed through WorkerMetrics.
func New(ctx context.Context, cfg config.Config, service string, registry *prometheus.Registry) (*App, error) {
	app := &App{Config: cfg, Service: service}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	app.WorkerMetrics = metrics.NewWorkerMetrics(service, registry)
	app.Pipeline = metrics.NewPipelineMetrics(service, app.WorkerMetrics.Registry())

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	executor.OnRetry(app.Pipeline.RetryObserver())

	store, err := app.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	queue, err := app.openQueue(cfg, executor)
	if err != nil {
		return nil, err
	}
	app.Queue = queue

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	provider, completer, err := buildCompleter(cfg, executor)
	if err != nil {
		return nil, err
	}
	app.Provider = provider

	embedder, err := buildEmbedder(cfg, executor)
	if err != nil {
		return nil, err
	}
	vectorDB, err := buildVectorStore(cfg)
	if err != nil {
		return nil, err
	}
	keywords, err := loadKeywordTable(cfg.RetrievalKeywordsFile)
	if err != nil {
		return nil, err
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	textExtractor := extractor.NewExtractor(storage)

	app.Documents = usecase.NewIndexDocumentUseCase(store, store, storage, textExtractor, chunker, embedder, vectorDB)
	app.Retriever = app.Pipeline.InstrumentRetriever(
		usecase.NewRetrieveUseCase(embedder, vectorDB, store, keywords, cfg.RetrievalSemanticCandidates),
	)
	instrumented := app.Pipeline.InstrumentCompleter(completer)
	synthesizer := usecase.NewSynthesizeUseCase(instrumented, usecase.SynthesisOptions{
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	})
	answerer := app.Pipeline.InstrumentAnswerer(usecase.NewAnswerUseCase(app.Retriever, synthesizer, cfg.RetrievalTopK))

	app.Projects = usecase.NewProjectUseCase(
		store,
		store,
		app.Documents,
		usecase.NewQuestionnaireParser(cfg.QuestionnaireMaxQuestions),
		answerer,
	)
	app.Answers = usecase.NewOrchestratorUseCase(
		store,
		answerer,
		workerpool.Factory,
		instrumented.Capabilities(),
		usecase.BatchOptions{BatchSize: cfg.BatchSize, MaxConcurrency: cfg.BatchMaxConcurrency},
	)
	app.Evaluation = usecase.NewEvaluateUseCase(store, store, store, store, usecase.EvaluationOptions{
		PlaceholderGroundTruth: cfg.EvalPlaceholderGroundTruth,
		CitationPolicy:         cfg.EvalCitationPolicy,
	})
	app.Requests = usecase.NewRequestUseCase(store, queue, app.Projects, app.Documents, app.Answers, app.Evaluation)

	policy := app.Answers.Policy()
	slog.Info("app_ready",
		"store", cfg.StoreBackend,
		"queue", cfg.QueueBackend,
		"vector", cfg.VectorBackend,
		"embedding", cfg.EmbeddingProvider,
		"llm_provider", provider.Name,
		"llm_model", provider.DefaultModel,
		"batch_concurrency", policy.Concurrency,
		"batch_interval_ms", policy.Interval.Milliseconds(),
	)
	ok = true
	return app, nil
}

// ProcessRequest runs one queued request with worker metrics.
func (a *App) ProcessRequest(ctx context.Context, requestID string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	requestType := "unknown"
	if req, err := a.Requests.GetRequest(ctx, requestID); err == nil {
		requestType = string(req.Type)
		a.WorkerMetrics.ObserveQueueLag(a.Service, time.Since(req.CreatedAt))
	}

	a.WorkerMetrics.StartRequest()
	start := time.Now()
	err := a.Requests.ProcessByID(ctx, requestID)
	a.WorkerMetrics.FinishRequest(a.Service, requestType, time.Since(start), err)
	if err != nil {
		slog.Error("request_failed", "request_id", requestID, "type", requestType, "error", err)
		return err
	}
	slog.Info("request_completed", "request_id", requestID, "type", requestType, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// RunInProcess consumes the queue inside this process until ctx is done.
func (a *App) RunInProcess(ctx context.Context) error {
	return a.Queue.SubscribeRequests(ctx, a.ProcessRequest)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config) (ports.Store, error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "", "memory":
		return memory.NewStore(), nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		store := postgres.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

func (a *App) openQueue(cfg config.Config, executor *resilience.Executor) (ports.MessageQueue, error) {
	switch strings.ToLower(cfg.QueueBackend) {
	case "", "local":
		queue := local.New(0, cfg.LocalQueueWorkers)
		a.closers = append(a.closers, queue.Close)
		return queue, nil
	case "nats":
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		a.closers = append(a.closers, queue.Close)
		return queue, nil
	default:
		return nil, fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}
}

func buildCompleter(cfg config.Config, executor *resilience.Executor) (llm.Preset, ports.Completer, error) {
	preset, err := llm.Lookup(cfg.LLMProvider)
	if err != nil {
		return llm.Preset{}, nil, err
	}

	switch preset.Kind {
	case llm.KindExtractive:
		return preset, extractive.New(), nil

	case llm.KindOllama:
		baseURL := cfg.LLMBaseURL
		if baseURL == "" {
			baseURL = cfg.OllamaURL
		}
		model := cfg.LLMModel
		if model == "" {
			model = cfg.OllamaGenModel
		}
		preset = preset.Resolve(baseURL, model, cfg.LLMRequestsPerMinute)
		client := ollama.New(preset.BaseURL, preset.DefaultModel, cfg.OllamaEmbedModel, executor).WithTimeout(cfg.LLMTimeout)
		return preset, ollama.NewCompleter(client), nil

	case llm.KindOpenAI:
		preset = preset.Resolve(cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMRequestsPerMinute)
		apiKey := cfg.LLMAPIKey
		if apiKey == "" && preset.APIKeyEnv != "" {
			apiKey = os.Getenv(preset.APIKeyEnv)
		}
		if strings.TrimSpace(apiKey) == "" {
			return llm.Preset{}, nil, fmt.Errorf("provider %s requires LLM_API_KEY or %s", preset.Name, preset.APIKeyEnv)
		}
		return preset, openaicompat.New(preset, apiKey, executor).WithTimeout(cfg.LLMTimeout), nil

	default:
		return llm.Preset{}, nil, fmt.Errorf("provider %s has unsupported kind %q", preset.Name, preset.Kind)
	}
}

func buildEmbedder(cfg config.Config, executor *resilience.Executor) (ports.Embedder, error) {
	switch strings.ToLower(cfg.EmbeddingProvider) {
	case "", "hash":
		return hash.New(cfg.EmbeddingDimension), nil
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor).WithTimeout(cfg.LLMTimeout)
		return ollama.NewEmbedder(client), nil
	default:
		return nil, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", cfg.EmbeddingProvider)
	}
}

func buildVectorStore(cfg config.Config) (ports.VectorStore, error) {
	switch strings.ToLower(cfg.VectorBackend) {
	case "", "memory":
		return vectormemory.New(), nil
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

func loadKeywordTable(path string) (*usecase.KeywordTable, error) {
	if strings.TrimSpace(path) == "" {
		return usecase.DefaultKeywordTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword table: %w", err)
	}
	table, err := usecase.ParseKeywordTable(raw)
	if err != nil {
		return nil, fmt.Errorf("parse keyword table %s: %w", path, err)
	}
	return table, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.RetryMaxAttempts
	rc.RetryInitialBackoff = cfg.RetryInitialBackoff
	rc.RetryMaxBackoff = cfg.RetryMaxBackoff
	rc.BreakerEnabled = cfg.BreakerEnabled
	return rc
}
