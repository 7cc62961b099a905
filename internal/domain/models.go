package domain

import "time"

// AnalysisStep is one fixed query run against the article.
type AnalysisStep struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Instruction string `json:"instruction" yaml:"instruction"`
}

// CompletionRequest is built fresh for every step and discarded after the call.
type CompletionRequest struct {
	Instruction string
	ArticleText string
	MaxTokens   int
}

// Usage holds token counts reported by the model provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Add returns the sum of two usages.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
	}
}

// Completion is a successful response from a Completer.
type Completion struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Usage Usage  `json:"usage"`
}

// StepResult is the outcome of one analysis step. Text holds either the
// model's answer or an "Error: ..." marker when Failed is set.
type StepResult struct {
	StepID   string        `json:"step_id"`
	Label    string        `json:"label"`
	Text     string        `json:"text"`
	Failed   bool          `json:"failed"`
	Duration time.Duration `json:"duration"`
	Usage    Usage         `json:"usage"`
}

// ProgressEvent is delivered to a ProgressSink before each step runs.
type ProgressEvent struct {
	StepID string
	Label  string
	Index  int // 1-based
	Total  int
}

// DocumentInfo describes a PDF file without extracting its text.
type DocumentInfo struct {
	Path     string            `json:"path"`
	Pages    int               `json:"pages"`
	SizeKB   float64           `json:"size_kb"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
