package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/spherical/article-analyzer/internal/analysis"
	"github.com/spherical/article-analyzer/internal/cache"
	"github.com/spherical/article-analyzer/internal/catalog"
	"github.com/spherical/article-analyzer/internal/config"
	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/history"
	"github.com/spherical/article-analyzer/internal/llm"
	"github.com/spherical/article-analyzer/internal/observability"
	"github.com/spherical/article-analyzer/internal/pdf"
	"github.com/spherical/article-analyzer/internal/service"
)

// overrides carries per-command flag values that take precedence over config.
type overrides struct {
	apiKey      string
	model       string
	maxTokens   int
	catalogPath string
	noHistory   bool
}

// newExtractor builds the article text source for a run.
var newExtractor = func(logger *observability.Logger) domain.TextExtractor {
	return pdf.NewExtractor(logger)
}

// app holds the components a command needs. Close releases them.
type app struct {
	cfg     *config.Config
	logger  *observability.Logger
	svc     *service.Service
	store   *history.Store
	closers []func() error
}

// loadConfig reads .env, the config file and environment overrides.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger keeps interactive commands quiet unless --verbose is set, so
// log lines do not interleave with the progress display.
func newLogger(cfg *config.Config, interactive bool) *observability.Logger {
	level := cfg.Observability.LogLevel
	if interactive {
		level = "error"
	}
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Observability.LogFormat,
		Output:      os.Stderr,
		ServiceName: "article-analyzer",
	})
}

func applyOverrides(cfg *config.Config, o overrides) error {
	if o.apiKey != "" {
		cfg.LLM.APIKey = o.apiKey
	}
	if o.model != "" {
		cfg.LLM.Model = o.model
	}
	if o.maxTokens > 0 {
		cfg.LLM.MaxTokens = o.maxTokens
	}
	if o.catalogPath != "" {
		cfg.Catalog.Path = o.catalogPath
	}
	if o.noHistory {
		cfg.History.Enabled = false
	}
	return cfg.Validate()
}

// newApp builds the full component graph. Commands that talk to the model
// require an API key.
func newApp(ctx context.Context, o overrides, interactive bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, o); err != nil {
		return nil, err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg, interactive)
	a := &app{cfg: cfg, logger: logger}

	cat, err := catalog.LoadOrDefault(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	completer, err := a.buildCompleter(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var recorder service.Recorder
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
		recorder = store
	}

	pipeline := analysis.NewPipeline(cat, analysis.NewExecutor(completer, cfg.LLM.MaxTokens, logger), logger)
	a.svc = service.New(service.Options{
		Extractor: newExtractor(logger),
		Pipeline:  pipeline,
		Recorder:  recorder,
		Model:     cfg.LLM.Model,
		Logger:    logger,
	})

	return a, nil
}

func (a *app) buildCompleter(ctx context.Context) (domain.Completer, error) {
	cfg := a.cfg
	client := llm.NewClient(llm.Config{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
		Stream:     cfg.LLM.Stream,
		Logger:     a.logger,
	})

	var store cache.Client
	switch cfg.Cache.Driver {
	case config.CacheMemory:
		store = cache.NewMemoryClient(cfg.Cache.MaxEntries)
	case config.CacheRedis:
		redisClient, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			URL:      cfg.Cache.Redis.URL,
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, domain.ConfigError("connect to redis cache", err)
		}
		store = redisClient
	default:
		return client, nil
	}

	a.closers = append(a.closers, store.Close)
	return llm.NewCachingCompleter(client, store, cfg.LLM.Model, cfg.Cache.TTL, a.logger), nil
}

// Close releases every resource opened by newApp.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to release resource")
		}
	}
	a.closers = nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
