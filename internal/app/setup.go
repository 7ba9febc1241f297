package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qdrant/go-client/qdrant"

	"github.com/hs094/Deepseek-Local-RAG-Agent/db"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/chat"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/config"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/ingest"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/knowledge"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/log"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/retrieval"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/session"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/websearch"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.onClose(pool.Close)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Primary = knowledge.NewPGStore(pool, embedder, logger.With("component", "pgstore"))

	if cfg.Qdrant.Enabled {
		secondary, cleanup, err := provideQdrant(ctx, cfg, embedder, logger)
		if err != nil {
			return nil, err
		}
		a.Secondary = secondary
		a.onClose(cleanup)
	}

	if cfg.WebSearchAvailable() {
		web, err := websearch.New(websearch.Config{
			APIKey:         cfg.Exa.APIKey,
			NumResults:     cfg.Exa.NumResults,
			IncludeDomains: cfg.Exa.IncludeDomains,
		}, logger.With("component", "websearch"))
		if err != nil {
			return nil, fmt.Errorf("creating web search client: %w", err)
		}
		a.Web = web
	}

	defaults := session.DefaultSettings()
	defaults.TopK = cfg.Retrieval.TopK
	defaults.SimilarityThreshold = cfg.Retrieval.SimilarityThreshold
	a.Sessions = session.NewStoreWith(defaults)
	a.Ingestor = provideIngestor(cfg, a, logger)

	engine, err := provideEngine(g, cfg, a, logger)
	if err != nil {
		return nil, err
	}
	a.Engine = engine

	return a, nil
}

// provideDBPool runs migrations and creates the PostgreSQL connection
// pool with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger.With("component", "migrate")); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured model provider.
// Supports ollama (default), openai, and gemini.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit with openai provider", "model", cfg.ModelName)
		return g, nil

	case config.ProviderGemini, config.ProviderGoogleAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)
		return g, nil

	default: // ollama
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
// Each provider registers embedders differently:
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
//   - gemini: GoogleAIEmbedder(g, modelName)
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	case config.ProviderGemini, config.ProviderGoogleAI:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	default: // ollama
		return ollama.Embedder(g, cfg.OllamaHost)
	}
}

// provideQdrant connects to Qdrant and ensures the collection exists.
func provideQdrant(ctx context.Context, cfg *config.Config, embedder ai.Embedder, logger log.Logger) (*knowledge.QdrantStore, func(), error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Qdrant.Host,
		Port: cfg.Qdrant.Port,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	store := knowledge.NewQdrantStore(client, cfg.Qdrant.Collection, embedder,
		logger.With("component", "qdrant"))
	if err := store.EnsureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ensuring qdrant collection: %w", err)
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("closing qdrant client", "error", err)
		}
	}
	return store, cleanup, nil
}

// provideIngestor wires the chunk writers. The primary store always
// receives chunks; Qdrant is mirrored when configured.
func provideIngestor(cfg *config.Config, a *App, logger log.Logger) *ingest.Ingestor {
	writers := []ingest.ChunkWriter{a.Primary}
	if a.Secondary != nil && cfg.Qdrant.MirrorWrites {
		writers = append(writers, a.Secondary)
	}
	return ingest.New(ingest.Config{}, logger.With("component", "ingest"), writers...)
}

// provideEngine builds the retrieval selector and the turn engine.
func provideEngine(g *genkit.Genkit, cfg *config.Config, a *App, logger log.Logger) (*chat.Engine, error) {
	// interface wiring: a nil *QdrantStore must stay a nil interface
	var secondary retrieval.Searcher
	if a.Secondary != nil {
		secondary = a.Secondary
	}
	var web retrieval.WebSearcher
	if a.Web != nil {
		web = a.Web
	}

	selector := retrieval.NewSelector(a.Primary, secondary, web,
		logger.With("component", "retrieval"))

	generator, err := chat.NewGenerator(chat.GeneratorConfig{
		Genkit:    g,
		ModelName: cfg.FullModelName(),
		Logger:    logger.With("component", "generator"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	return chat.NewEngine(selector, generator, logger.With("component", "engine"))
}
