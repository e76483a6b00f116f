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
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/selldesk/concierge/db"
	"github.com/selldesk/concierge/internal/agent"
	"github.com/selldesk/concierge/internal/catalog"
	"github.com/selldesk/concierge/internal/config"
	"github.com/selldesk/concierge/internal/conversation"
	"github.com/selldesk/concierge/internal/log"
	"github.com/selldesk/concierge/internal/tools"
)

// Setup creates and initializes the application.
// Runs migrations, connects the pool, initializes Genkit with the configured
// provider, and wires stores, tools, and the agent.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

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

	a.Catalog = catalog.NewStore(pool, embedder, logger.With("component", "catalog"))
	a.Conversations = conversation.NewPostgresStore(pool, logger.With("component", "conversation"))

	catalogTools, err := tools.NewCatalog(a.Catalog, logger.With("component", "tools"))
	if err != nil {
		return nil, fmt.Errorf("creating catalog tools: %w", err)
	}
	toolRefs, err := tools.Register(g, catalogTools)
	if err != nil {
		return nil, fmt.Errorf("registering catalog tools: %w", err)
	}

	client := agent.NewClient(g, cfg.FullModelName(), retryPolicy(cfg),
		cfg.RequestsPerMinute, logger.With("component", "model_client"))
	a.Agent = agent.New(g, client, a.Conversations, toolRefs,
		logger.With("component", "agent"),
		agent.WithMaxToolRounds(cfg.MaxToolRounds))

	return a, nil
}

// retryPolicy converts config's millisecond settings to the agent's policy.
func retryPolicy(cfg *config.Config) agent.RetryPolicy {
	return agent.RetryPolicy{
		MaxAttempts:  cfg.RetryMaxAttempts,
		BaseInterval: time.Duration(cfg.RetryBaseMs) * time.Millisecond,
		MaxInterval:  time.Duration(cfg.RetryCapMs) * time.Millisecond,
	}
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini" / "googleai"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName(config.ProviderOpenAI, cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
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
