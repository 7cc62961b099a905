// Package service wires extraction, the analysis pipeline, report rendering
// and run history into the operations the CLI, HTTP API and library share.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/article-analyzer/internal/analysis"
	"github.com/spherical/article-analyzer/internal/catalog"
	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/history"
	"github.com/spherical/article-analyzer/internal/observability"
	"github.com/spherical/article-analyzer/internal/report"
)

// Recorder persists finished runs.
type Recorder interface {
	Save(ctx context.Context, source, model string, createdAt time.Time, duration time.Duration, results *domain.RunResults) (*history.Run, error)
}

// Run is one finished analysis.
type Run struct {
	ID        string
	Source    string
	Model     string
	CreatedAt time.Time
	Duration  time.Duration
	Results   *domain.RunResults
	// Recorded is set when the run was written to history.
	Recorded bool
}

// Options configures a Service.
type Options struct {
	Extractor domain.TextExtractor
	Pipeline  *analysis.Pipeline
	Recorder  Recorder // nil disables history
	Model     string
	Logger    *observability.Logger
}

// Service orchestrates a complete analysis run.
type Service struct {
	extractor domain.TextExtractor
	pipeline  *analysis.Pipeline
	assembler *report.Assembler
	recorder  Recorder
	model     string
	logger    *observability.Logger
	now       func() time.Time
}

// New creates a new analysis service
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		extractor: opts.Extractor,
		pipeline:  opts.Pipeline,
		assembler: report.NewAssembler(opts.Pipeline.Catalog()),
		recorder:  opts.Recorder,
		model:     opts.Model,
		logger:    logger.WithComponent("service"),
		now:       time.Now,
	}
}

// Catalog returns the step catalog runs iterate.
func (s *Service) Catalog() *catalog.Catalog {
	return s.pipeline.Catalog()
}

// Model returns the model name reported for runs.
func (s *Service) Model() string {
	return s.model
}

// ExtractText returns the article text of the PDF at path.
func (s *Service) ExtractText(ctx context.Context, path string) (string, error) {
	if s.extractor == nil {
		return "", domain.ConfigError("no text extractor configured", nil)
	}
	return s.extractor.ExtractText(ctx, path)
}

// AnalyzeFile extracts the PDF at path and runs every catalog step over it.
// Extraction problems are returned before any step runs.
func (s *Service) AnalyzeFile(ctx context.Context, path string, sink domain.ProgressSink) (*Run, error) {
	text, err := s.ExtractText(ctx, path)
	if err != nil {
		s.logger.Error().Str("path", path).Err(err).Msg("Text extraction failed")
		return nil, err
	}
	return s.AnalyzeText(ctx, path, text, sink)
}

// AnalyzeText runs every catalog step over text. source names the article
// in reports and history. A history write failure is logged and does not
// fail the run.
func (s *Service) AnalyzeText(ctx context.Context, source, text string, sink domain.ProgressSink) (*Run, error) {
	createdAt := s.now()

	results, err := s.pipeline.Analyze(ctx, text, sink)
	if err != nil {
		return nil, err
	}

	run := &Run{
		Source:    source,
		Model:     s.model,
		CreatedAt: createdAt,
		Duration:  s.now().Sub(createdAt),
		Results:   results,
	}

	if s.recorder != nil {
		// The run is finished; a cancelled request context must not lose it.
		stored, err := s.recorder.Save(context.WithoutCancel(ctx), source, s.model, createdAt, run.Duration, results)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to record run in history")
		} else {
			run.ID = stored.ID
			run.Recorded = true
		}
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	s.logger.WithRun(run.ID).Info().
		Str("source", source).
		Int("failed", results.FailedCount()).
		Dur("duration", run.Duration).
		Msg("Run finished")

	return run, nil
}

// Ask runs a single ad-hoc instruction over the PDF at path.
func (s *Service) Ask(ctx context.Context, path, instruction, label string) (domain.StepResult, error) {
	text, err := s.ExtractText(ctx, path)
	if err != nil {
		return domain.StepResult{}, err
	}
	return s.pipeline.Executor().RunCustom(ctx, instruction, label, text)
}

// Render produces the plain-text report for a run.
func (s *Service) Render(run *Run) string {
	return s.assembler.Render(run.Results, metadata(run))
}

// RenderStored produces the report for a run loaded from history.
func (s *Service) RenderStored(run *history.Run) string {
	return RenderHistory(run)
}

// RenderHistory produces the report for a stored run. Sections come from
// the run's own entries, not the catalog configured now.
func RenderHistory(stored *history.Run) string {
	run := FromHistory(stored)
	return report.NewResultsAssembler(run.Results).Render(run.Results, metadata(run))
}

func metadata(run *Run) report.Metadata {
	return report.Metadata{
		Source:    run.Source,
		Timestamp: run.CreatedAt,
		Model:     run.Model,
	}
}

// FromHistory converts a stored run. Timestamps come back in local time,
// matching freshly finished runs.
func FromHistory(run *history.Run) *Run {
	return &Run{
		ID:        run.ID,
		Source:    run.Source,
		Model:     run.Model,
		CreatedAt: run.CreatedAt.Local(),
		Duration:  run.Duration,
		Results:   run.Results,
		Recorded:  true,
	}
}
