// Package analysis runs the analysis steps of a catalog against an article.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/observability"
)

const (
	// ErrorPrefix marks a step entry whose completion failed.
	ErrorPrefix = "Error: "

	// DefaultMaxTokens bounds each response when no explicit limit is configured.
	DefaultMaxTokens = 1024

	noResponseMessage = "no response from model"
)

// Executor runs a single analysis step against a Completer.
type Executor struct {
	completer domain.Completer
	maxTokens int
	logger    *observability.Logger
}

// NewExecutor creates a step executor. A non-positive maxTokens falls back to DefaultMaxTokens.
func NewExecutor(completer domain.Completer, maxTokens int, logger *observability.Logger) *Executor {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Executor{
		completer: completer,
		maxTokens: maxTokens,
		logger:    logger.WithComponent("executor"),
	}
}

// MaxTokens returns the response-size bound sent with every request.
func (e *Executor) MaxTokens() int {
	return e.maxTokens
}

// Run executes one step. It never returns an error: a failed completion is
// turned into an "Error: <message>" entry with Failed set.
func (e *Executor) Run(ctx context.Context, step domain.AnalysisStep, articleText string) domain.StepResult {
	start := time.Now()
	result := domain.StepResult{
		StepID: step.ID,
		Label:  step.Label,
	}

	completion, err := e.complete(ctx, domain.CompletionRequest{
		Instruction: step.Instruction,
		ArticleText: articleText,
		MaxTokens:   e.maxTokens,
	})
	result.Duration = time.Since(start)

	if err != nil {
		e.logger.Error().
			Str("step_id", step.ID).
			Err(err).
			Msg("Step failed")
		result.Text = ErrorPrefix + domain.FailureMessage(err)
		result.Failed = true
		return result
	}

	result.Text = completion.Text
	result.Usage = completion.Usage
	return result
}

// RunCustom runs an ad-hoc instruction that is not part of any catalog.
// Unlike Run it reports failures as errors.
func (e *Executor) RunCustom(ctx context.Context, instruction, label, articleText string) (domain.StepResult, error) {
	if strings.TrimSpace(instruction) == "" {
		return domain.StepResult{}, domain.InvalidInputError("instruction is empty", nil)
	}
	if strings.TrimSpace(articleText) == "" {
		return domain.StepResult{}, domain.InvalidInputError("article text is empty", nil)
	}
	if strings.TrimSpace(label) == "" {
		label = "Custom Analysis"
	}

	result := e.Run(ctx, domain.AnalysisStep{
		ID:          "custom",
		Label:       label,
		Instruction: instruction,
	}, articleText)
	if result.Failed {
		return result, domain.StepError(strings.TrimPrefix(result.Text, ErrorPrefix), nil)
	}
	return result, nil
}

// complete calls the Completer and normalizes its answer. Contract
// violations and panics come back as errors.
func (e *Executor) complete(ctx context.Context, req domain.CompletionRequest) (completion *domain.Completion, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Msg("Completer panicked")
			completion = nil
			err = domain.StepError(fmt.Sprintf("internal fault: %v", r), nil)
		}
	}()

	completion, err = e.completer.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if completion == nil {
		return nil, domain.ResponseError(noResponseMessage, nil)
	}

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		return nil, domain.ResponseError(noResponseMessage, nil)
	}

	out := *completion
	out.Text = text
	return &out, nil
}
