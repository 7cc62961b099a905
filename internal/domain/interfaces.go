package domain

import "context"

// Completer turns an instruction plus article text into a model response.
// Every transport, auth, quota or decoding problem is returned as an error;
// a nil error always comes with a non-empty trimmed Completion.Text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (*Completion, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	return f(ctx, req)
}

// TextExtractor supplies the article text for a run
type TextExtractor interface {
	// ExtractText returns the full text of the document at path
	ExtractText(ctx context.Context, path string) (string, error)
}

// ProgressSink is called synchronously before each step's completion call.
type ProgressSink func(ProgressEvent)
