// Package cli assembles the tripwise components from configuration for the
// command line, HTTP and MCP surfaces.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/tripwise"
	"github.com/aretw0/tripwise/internal/config"
	"github.com/aretw0/tripwise/internal/logging"
	"github.com/aretw0/tripwise/pkg/adapters/amadeus"
	"github.com/aretw0/tripwise/pkg/adapters/claude"
	"github.com/aretw0/tripwise/pkg/adapters/memory"
	redisadapter "github.com/aretw0/tripwise/pkg/adapters/redis"
	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/itinerary"
	"github.com/aretw0/tripwise/pkg/observability"
	"github.com/aretw0/tripwise/pkg/ports"
	"github.com/aretw0/tripwise/pkg/session"
	"github.com/aretw0/tripwise/pkg/tools"
	"github.com/aretw0/tripwise/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// App is a fully wired tripwise instance.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *tools.Registry
	Pipeline *workflow.Pipeline
	Planner  *tripwise.Planner
	Sessions *session.Manager
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer

	redis *redis.Client
}

// AppOption customizes the wiring, mostly for tests.
type AppOption func(*appOptions)

type appOptions struct {
	logger   *slog.Logger
	model    ports.Model
	searcher tools.FlightSearcher
	hooks    []domain.LifecycleHooks
}

// WithLogger sets the logger instead of building one from the log section.
func WithLogger(logger *slog.Logger) AppOption {
	return func(o *appOptions) { o.logger = logger }
}

// WithModel replaces the configured model backend.
func WithModel(m ports.Model) AppOption {
	return func(o *appOptions) { o.model = m }
}

// WithFlightSearcher replaces the provider-backed flight search.
func WithFlightSearcher(s tools.FlightSearcher) AppOption {
	return func(o *appOptions) { o.searcher = s }
}

// WithHooks adds lifecycle hooks next to the logging and metrics hooks.
func WithHooks(hooks domain.LifecycleHooks) AppOption {
	return func(o *appOptions) { o.hooks = append(o.hooks, hooks) }
}

// NewApp wires every component. The configuration must be valid unless
// both the model and flight searcher are injected.
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	o := appOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.model == nil || o.searcher == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = NewLogger(cfg)
		if err != nil {
			return nil, err
		}
	}

	model := o.model
	if model == nil {
		m, err := claude.New(cfg.ModelBackend(), claude.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("model backend: %w", err)
		}
		model = m
	}

	searcher := o.searcher
	if searcher == nil {
		searcher = NewFlightSearcher(cfg, logger)
	}
	registry := tools.NewRegistry(tools.NewSearchFlights(searcher))

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	hooks := domain.MergeHooks(append([]domain.LifecycleHooks{metrics.Hooks(), observability.LogHooks(logger)}, o.hooks...)...)

	pipeline, err := BuildPipeline(cfg, model, registry, logger, hooks)
	if err != nil {
		return nil, err
	}

	planner, err := tripwise.New(pipeline, tripwise.WithLogger(logger), tripwise.WithLifecycleHooks(hooks))
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Pipeline: pipeline,
		Planner:  planner,
		Metrics:  metrics,
		Gatherer: reg,
	}

	sessOpts := []session.Option{session.WithLogger(logger)}
	var history ports.HistoryStore = memory.NewHistoryStore()
	if cfg.Redis.Addr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		sessOpts = append(sessOpts,
			session.WithLocker(redisadapter.NewLocker(app.redis, "")),
			session.WithLockTTL(cfg.Redis.LockTTL),
		)
		history = redisadapter.NewHistoryStore(app.redis, redisadapter.WithHistoryTTL(cfg.Redis.HistoryTTL))
	}
	app.Sessions = session.NewManager(planner, history, sessOpts...)
	return app, nil
}

// Ping checks the optional Redis connection.
func (a *App) Ping(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return redisadapter.NewLocker(a.redis, "").Ping(ctx)
}

// Close releases external connections.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(level, cfg.Log.Format), nil
}

// NewFlightSearcher builds the provider-backed flight search.
func NewFlightSearcher(cfg *config.Config, logger *slog.Logger) *amadeus.FlightSearcher {
	client := amadeus.NewClient(cfg.ProviderConfig(), amadeus.WithLogger(logger))
	var tokens amadeus.TokenSource = client.Tokens()
	if cfg.Provider.TokenCache {
		tokens = amadeus.NewCachedTokenSource(client)
	}
	return amadeus.NewFlightSearcher(client, tokens, amadeus.NewResolver(client, tokens))
}

// BuildPipeline builds the itinerary pipeline with the configured limits and prompt overrides.
func BuildPipeline(cfg *config.Config, model ports.Model, resolver workflow.ToolResolver, logger *slog.Logger, hooks domain.LifecycleHooks) (*workflow.Pipeline, error) {
	overrides, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}
	invoker := workflow.NewInvoker(model,
		workflow.WithToolResolver(resolver),
		workflow.WithMaxToolTurns(cfg.Model.MaxToolTurns),
		workflow.WithModelName(cfg.Model.Name),
		workflow.WithMaxTokens(cfg.Model.MaxTokens),
		workflow.WithHooks(hooks),
		workflow.WithLogger(logger),
	)
	return itinerary.NewPipeline(invoker, overrides)
}

// offlineModel refuses every call; it backs pipelines built only for inspection.
var offlineModel = ports.ModelFunc(func(context.Context, domain.ModelRequest) (*domain.ModelResponse, error) {
	return nil, errors.New("model backend not configured")
})

// InspectPipeline builds the pipeline without credentials, for graph and validate.
func InspectPipeline(cfg *config.Config) (*workflow.Pipeline, error) {
	registry := tools.NewRegistry(tools.NewSearchFlights(nil))
	return BuildPipeline(cfg, offlineModel, registry, logging.NewNop(), domain.LifecycleHooks{})
}
