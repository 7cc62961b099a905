package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const maxLineSize = 1024 * 1024

// StreamParser handles parsing of Server-Sent Events (SSE) streams
type StreamParser struct {
	scanner *bufio.Scanner
	model   string
	usage   *Usage
}

// NewStreamParser creates a new stream parser
func NewStreamParser(reader io.Reader) *StreamParser {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamParser{scanner: scanner}
}

// StreamChunk represents a single chunk from the stream
type StreamChunk struct {
	Content      string
	FinishReason string
	Done         bool
}

// Next reads the next chunk from the stream. The stream ends at the
// [DONE] marker or EOF; a finish_reason alone does not end it because
// usage may follow in a later chunk.
func (p *StreamParser) Next() (*StreamChunk, error) {
	for p.scanner.Scan() {
		line := p.scanner.Text()

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if data == "[DONE]" {
			return &StreamChunk{Done: true}, nil
		}

		var resp Response
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			// Skip invalid JSON lines
			continue
		}

		if resp.Model != "" {
			p.model = resp.Model
		}
		if resp.Usage != nil {
			p.usage = resp.Usage
		}

		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			return &StreamChunk{
				Content:      choice.Delta.Content,
				FinishReason: choice.FinishReason,
			}, nil
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, err
	}

	return &StreamChunk{Done: true}, nil
}

// ParseAll reads all chunks from the stream and passes content to fn.
func (p *StreamParser) ParseAll(fn func(string)) error {
	for {
		chunk, err := p.Next()
		if err != nil {
			return err
		}

		if chunk.Content != "" {
			fn(chunk.Content)
		}

		if chunk.Done {
			return nil
		}
	}
}

// Model returns the model reported by the stream, if any.
func (p *StreamParser) Model() string {
	return p.model
}

// Usage returns the token usage reported by the stream, if any.
func (p *StreamParser) Usage() *Usage {
	return p.usage
}
