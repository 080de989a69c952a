package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/helpgrid/helpgrid/internal/ai"
	"github.com/helpgrid/helpgrid/internal/config"
	"github.com/helpgrid/helpgrid/internal/confluence"
	"github.com/helpgrid/helpgrid/internal/database"
	"github.com/helpgrid/helpgrid/internal/github"
	"github.com/helpgrid/helpgrid/internal/httpx"
	"github.com/helpgrid/helpgrid/internal/jira"
	"github.com/helpgrid/helpgrid/internal/jobs"
	"github.com/helpgrid/helpgrid/internal/knowledge"
	"github.com/helpgrid/helpgrid/internal/log"
	"github.com/helpgrid/helpgrid/internal/rag"
	"github.com/helpgrid/helpgrid/internal/secrets"
	"github.com/helpgrid/helpgrid/internal/store"
)

// githubRateLimit throttles GitHub calls: the per-file commit lookups
// burn through the 5000 req/h authenticated budget quickly.
const githubRateLimit = rate.Limit(1)

// app bundles the wired services shared by the serve and worker
// commands.
type app struct {
	pool      *pgxpool.Pool
	store     *store.Store
	knowledge *knowledge.Store
	generator *rag.Generator
	tasks     *jobs.Tasks
	logger    log.Logger
}

// newApp connects to the database and wires every service from the
// configuration.
func newApp(ctx context.Context, cfg *config.Config, logger log.Logger) (*app, error) {
	pool, err := database.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	st := store.New(pool, logger.With("component", "store"))

	cipher, err := secrets.NewCipher(cfg.EncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("building credential cipher: %w", err)
	}

	provider, err := ai.NewOpenAIProvider(ai.Config{
		APIKey:          cfg.OpenAIAPIKey,
		EmbeddingModel:  cfg.EmbeddingModel,
		CompletionModel: cfg.CompletionModel,
	}, logger.With("component", "ai"))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("building AI provider: %w", err)
	}

	know := knowledge.New(st, provider.Embedder(), logger.With("component", "knowledge"))
	generator := rag.NewGenerator(know, provider.Completer(), logger.With("component", "rag"))

	atlassianClient := httpx.New(httpx.Config{}, logger.With("component", "httpx"))
	githubClient := httpx.New(httpx.Config{
		Limiter: rate.NewLimiter(githubRateLimit, 5),
	}, logger.With("component", "httpx", "api", "github"))

	tasks := jobs.NewTasks(
		st,
		cipher,
		jira.NewFetcher(atlassianClient, st, know, logger.With("component", "jira")),
		confluence.NewFetcher(atlassianClient, st, know, logger.With("component", "confluence")),
		github.NewFetcher(githubClient, st, know, logger.With("component", "github")),
		logger.With("component", "tasks"),
	)

	return &app{
		pool:      pool,
		store:     st,
		knowledge: know,
		generator: generator,
		tasks:     tasks,
		logger:    logger,
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}

// schedulerInterval is how often the cadence scheduler checks for due
// syncs; cadences themselves are per-config in minutes.
const schedulerInterval = time.Minute
