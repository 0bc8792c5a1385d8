package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/scribe/internal/cache"
	"github.com/starford/scribe/internal/generation"
	"github.com/starford/scribe/internal/keywords"
	"github.com/starford/scribe/internal/llm"
	"github.com/starford/scribe/internal/metrics"
	"github.com/starford/scribe/internal/pipeline"
	"github.com/starford/scribe/internal/runstore"
	"github.com/starford/scribe/internal/scoring"
	"github.com/starford/scribe/internal/sse"
	"github.com/starford/scribe/internal/throttle"
)

// App holds the wired components every command shares.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Runs    *runstore.DB
	Service *pipeline.Service
	Version string

	closers []func() error
}

// Close releases everything Open acquired, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Open builds the pipeline from the configuration. events may be nil.
func Open(opts ...Option) (*App, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return open(app, nil)
}

func open(app *application, events pipeline.Events) (_ *App, err error) {
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New(), Version: app.version}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	gen, err := llm.New(cfg.LLM.Client(), logger)
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}
	limiter := throttle.New(cfg.LLM.MinInterval, logger)

	genOpts := []generation.Option{
		generation.WithLimiter(limiter),
		generation.WithTTL(cfg.Cache.TTL),
		generation.WithLogger(logger),
		generation.WithMetrics(a.Metrics),
	}
	switch cfg.Cache.Backend {
	case CacheBackendRedis:
		rc, err := cache.NewRedis(cache.RedisConfig{
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		genOpts = append(genOpts, generation.WithCache(rc))
	case CacheBackendMemory:
		genOpts = append(genOpts, generation.WithCache(cache.NewMemory()))
	}
	orchestrator := generation.New(gen, genOpts...)

	var analyzer scoring.Analyzer
	if cfg.Scoring.Semantic {
		analyzer = scoring.NewLLMAnalyzer(gen, limiter, logger, a.Metrics)
	}
	engine := scoring.NewEngine(analyzer, cfg.Scoring.Rules(), logger, a.Metrics)

	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := runstore.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init run store: %w", err)
	}
	a.Runs = db
	a.closers = append(a.closers, db.Close)

	svcOpts := []pipeline.Option{
		pipeline.WithRunStore(db),
		pipeline.WithDefaults(pipeline.Defaults{
			Language:    cfg.Optimizer.Language,
			Location:    cfg.Keywords.Location,
			MinScore:    cfg.Optimizer.MinScore,
			MaxAttempts: cfg.Optimizer.MaxAttempts,
		}),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(a.Metrics),
	}
	if events != nil {
		svcOpts = append(svcOpts, pipeline.WithEvents(events))
	}
	if cfg.Keywords.Enabled() {
		provider, err := keywords.NewHTTPProvider(keywords.HTTPConfig{
			BaseURL:  cfg.Keywords.BaseURL,
			Login:    cfg.Keywords.Login,
			Password: cfg.Keywords.Password,
			Timeout:  cfg.Keywords.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init keyword provider: %w", err)
		}
		svcOpts = append(svcOpts, pipeline.WithEnricher(keywords.NewEnricher(provider,
			keywords.WithParallelism(cfg.Keywords.Parallelism),
			keywords.WithBatchSize(cfg.Keywords.BatchSize),
			keywords.WithLogger(logger),
			keywords.WithMetrics(a.Metrics),
		)))
	}
	a.Service = pipeline.NewService(orchestrator, engine, svcOpts...)

	logger.Info("Configuration loaded",
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("llm_model", cfg.LLM.Model),
		slog.String("cache_backend", cfg.Cache.Backend),
		slog.Bool("semantic_scoring", cfg.Scoring.Semantic),
		slog.Bool("keyword_metrics", cfg.Keywords.Enabled()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return a, nil
}

// compile-time check that the broker can receive run progress.
var _ pipeline.Events = (*sse.Broker)(nil)
