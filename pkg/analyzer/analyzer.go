// Package analyzer is the public entry point for embedding the article
// analyzer in other programs.
package analyzer

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	"github.com/spherical/article-analyzer/internal/analysis"
	"github.com/spherical/article-analyzer/internal/catalog"
	"github.com/spherical/article-analyzer/internal/config"
	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/llm"
	"github.com/spherical/article-analyzer/internal/observability"
	"github.com/spherical/article-analyzer/internal/pdf"
	"github.com/spherical/article-analyzer/internal/report"
	"github.com/spherical/article-analyzer/internal/service"
)

// Re-export domain types for the public API
type (
	AnalysisStep      = domain.AnalysisStep
	StepResult        = domain.StepResult
	RunResults        = domain.RunResults
	ProgressEvent     = domain.ProgressEvent
	ProgressSink      = domain.ProgressSink
	DocumentInfo      = domain.DocumentInfo
	Completer         = domain.Completer
	CompletionRequest = domain.CompletionRequest
	Completion        = domain.Completion
	DomainError       = domain.DomainError
)

// Config holds configuration options for the client
type Config struct {
	APIKey      string        // required unless Completer is set
	Model       string        // optional model override
	BaseURL     string        // optional OpenAI-compatible endpoint
	MaxTokens   int           // optional, defaults to 1024
	Timeout     time.Duration // optional HTTP timeout
	CatalogPath string        // optional YAML step catalog
	// Completer replaces the HTTP client, e.g. for a different provider.
	Completer Completer
	Logger    *observability.Logger
}

// Result is one finished analysis.
type Result struct {
	Source    string
	Model     string
	Timestamp time.Time
	Results   *RunResults
}

// Client is the main entry point for the analyzer library
type Client struct {
	svc       *service.Service
	extractor *pdf.Extractor
}

// NewClient creates a client configured from the environment and .env.
func NewClient() (*Client, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	return NewClientWithConfig(&Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		CatalogPath: cfg.Catalog.Path,
	})
}

// NewClientWithConfig creates a client with custom configuration
func NewClientWithConfig(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" && cfg.Completer == nil {
		return nil, domain.ConfigError("API key is required", nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	cat, err := catalog.LoadOrDefault(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = llm.DefaultModel
	}

	completer := cfg.Completer
	if completer == nil {
		completer = llm.NewClient(llm.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   model,
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
	}

	extractor := pdf.NewExtractor(logger)
	executor := analysis.NewExecutor(completer, cfg.MaxTokens, logger)

	return &Client{
		svc: service.New(service.Options{
			Extractor: extractor,
			Pipeline:  analysis.NewPipeline(cat, executor, logger),
			Model:     model,
			Logger:    logger,
		}),
		extractor: extractor,
	}, nil
}

// AnalyzeFile extracts the PDF at path and runs every analysis step.
// sink, when non-nil, is called before each step.
func (c *Client) AnalyzeFile(ctx context.Context, path string, sink ProgressSink) (*Result, error) {
	run, err := c.svc.AnalyzeFile(ctx, path, sink)
	if err != nil {
		return nil, err
	}
	return toResult(run), nil
}

// AnalyzeText runs every analysis step over already extracted text.
func (c *Client) AnalyzeText(ctx context.Context, source, text string, sink ProgressSink) (*Result, error) {
	run, err := c.svc.AnalyzeText(ctx, source, text, sink)
	if err != nil {
		return nil, err
	}
	return toResult(run), nil
}

// Ask runs one custom instruction over the PDF at path.
func (c *Client) Ask(ctx context.Context, path, instruction, label string) (StepResult, error) {
	return c.svc.Ask(ctx, path, instruction, label)
}

// Steps returns the analysis steps in run order.
func (c *Client) Steps() []AnalysisStep {
	return c.svc.Catalog().Steps()
}

// Info returns page count, size and metadata of the PDF at path.
func (c *Client) Info(path string) (*DocumentInfo, error) {
	return c.extractor.Info(path)
}

// Render produces the plain-text report for a result.
func (c *Client) Render(result *Result) string {
	return report.NewAssembler(c.svc.Catalog()).Render(result.Results, report.Metadata{
		Source:    result.Source,
		Timestamp: result.Timestamp,
		Model:     result.Model,
	})
}

// Save renders result and writes it to path.
func (c *Client) Save(result *Result, path string) error {
	return report.Save(path, c.Render(result))
}

// DefaultFileName returns the suggested report file name for a result.
func DefaultFileName(result *Result) string {
	return report.DefaultFileName(result.Timestamp)
}

func toResult(run *service.Run) *Result {
	return &Result{
		Source:    run.Source,
		Model:     run.Model,
		Timestamp: run.CreatedAt,
		Results:   run.Results,
	}
}
