package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/spherical/article-analyzer/internal/catalog"
	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/observability"
)

// Pipeline runs every catalog step against one article, in order.
type Pipeline struct {
	catalog  *catalog.Catalog
	executor *Executor
	logger   *observability.Logger
}

// NewPipeline creates a pipeline over the given catalog and executor.
func NewPipeline(cat *catalog.Catalog, executor *Executor, logger *observability.Logger) *Pipeline {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Pipeline{
		catalog:  cat,
		executor: executor,
		logger:   logger.WithComponent("pipeline"),
	}
}

// Catalog returns the catalog the pipeline iterates.
func (p *Pipeline) Catalog() *catalog.Catalog {
	return p.catalog
}

// Executor returns the step executor.
func (p *Pipeline) Executor() *Executor {
	return p.executor
}

// Analyze runs all steps sequentially. The only error it returns is an
// InvalidInput error for blank article text, raised before any step runs.
// Per-step failures are recorded as "Error: ..." entries and never stop the
// loop, so the result always holds one entry per catalog step.
func (p *Pipeline) Analyze(ctx context.Context, articleText string, sink domain.ProgressSink) (*domain.RunResults, error) {
	if strings.TrimSpace(articleText) == "" {
		return nil, domain.InvalidInputError("article text is empty", nil)
	}

	startTime := time.Now()
	steps := p.catalog.Steps()
	total := len(steps)
	entries := make([]domain.StepResult, 0, total)

	p.logger.Info().
		Int("steps", total).
		Int("text_length", len(articleText)).
		Int("max_tokens", p.executor.MaxTokens()).
		Msg("Starting article analysis")

	for i, step := range steps {
		index := i + 1

		if sink != nil {
			sink(domain.ProgressEvent{
				StepID: step.ID,
				Label:  step.Label,
				Index:  index,
				Total:  total,
			})
		}

		p.logger.Debug().
			Str("step_id", step.ID).
			Int("index", index).
			Int("total", total).
			Msg("Running step")

		entries = append(entries, p.executor.Run(ctx, step, articleText))
	}

	results := domain.NewRunResults(entries)

	p.logger.Info().
		Int("completed", results.Len()-results.FailedCount()).
		Int("failed", results.FailedCount()).
		Int("prompt_tokens", results.TotalUsage().PromptTokens).
		Int("completion_tokens", results.TotalUsage().CompletionTokens).
		Dur("duration", time.Since(startTime)).
		Msg("Article analysis complete")

	return results, nil
}
