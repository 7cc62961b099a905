// Package llm implements domain.Completer against OpenAI-compatible
// chat-completions endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/observability"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-2024-08-06"
	DefaultTimeout = 120 * time.Second

	completionsPath = "/chat/completions"
	maxErrorBody    = 300
)

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Stream     bool
	Logger     *observability.Logger
	HTTPClient *http.Client
}

// Client handles communication with a chat-completions API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	stream     bool
	retry      *RetryConfig
	httpClient *http.Client
	logger     *observability.Logger
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents the API request structure
type Request struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
}

// StreamOptions asks the server to append usage to the final stream chunk.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Response represents the API response structure
type Response struct {
	ID      string     `json:"id"`
	Model   string     `json:"model"`
	Choices []Choice   `json:"choices"`
	Usage   *Usage     `json:"usage,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// Choice represents a single completion choice
type Choice struct {
	Delta        Delta  `json:"delta"`
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message or a streamed message delta
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// Usage is the token accounting returned by the API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorBody is the error envelope returned on non-2xx responses.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

// NewClient creates a new LLM client. Zero values fall back to defaults.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		stream:     cfg.Stream,
		retry:      retry,
		httpClient: httpClient,
		logger:     logger.WithComponent("llm"),
	}
}

// Model returns the model name sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the step instruction as the system message and the article
// text as the user message.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, domain.APIError("failed to marshal request", err)
	}

	start := time.Now()
	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		if c.stream {
			httpReq.Header.Set("Accept", "text/event-stream")
		}

		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.APIError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, statusError(resp.StatusCode, bodyBytes)
	}

	var completion *domain.Completion
	if c.stream {
		completion, err = c.parseStream(resp.Body)
	} else {
		completion, err = c.parseResponse(resp.Body)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("model", completion.Model).
		Int("prompt_tokens", completion.Usage.PromptTokens).
		Int("completion_tokens", completion.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("Completion received")

	return completion, nil
}

func (c *Client) buildRequest(req domain.CompletionRequest) *Request {
	r := &Request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: req.Instruction},
			{Role: "user", Content: req.ArticleText},
		},
		MaxTokens: req.MaxTokens,
	}
	if c.stream {
		r.Stream = true
		r.StreamOptions = &StreamOptions{IncludeUsage: true}
	}
	return r
}

func (c *Client) parseResponse(body io.Reader) (*domain.Completion, error) {
	var resp Response
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, domain.ResponseError("failed to decode response", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return nil, domain.APIError(resp.Error.Message, nil)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.ResponseError("response contained no choices", nil)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, domain.ResponseError("response contained empty content", nil)
	}

	return &domain.Completion{
		Text:  text,
		Model: c.responseModel(resp.Model),
		Usage: toDomainUsage(resp.Usage),
	}, nil
}

// parseStream accumulates a Server-Sent Events stream into one completion.
func (c *Client) parseStream(body io.Reader) (*domain.Completion, error) {
	var text strings.Builder
	parser := NewStreamParser(body)
	err := parser.ParseAll(func(chunk string) {
		text.WriteString(chunk)
	})
	if err != nil {
		return nil, domain.ResponseError("failed to parse stream", err)
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, domain.ResponseError("stream contained empty content", nil)
	}

	return &domain.Completion{
		Text:  out,
		Model: c.responseModel(parser.Model()),
		Usage: toDomainUsage(parser.Usage()),
	}, nil
}

func (c *Client) responseModel(model string) string {
	if model == "" {
		return c.model
	}
	return model
}

func toDomainUsage(u *Usage) domain.Usage {
	if u == nil {
		return domain.Usage{}
	}
	return domain.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens}
}

// statusError maps a non-2xx response to a typed domain error.
func statusError(status int, body []byte) error {
	msg := fmt.Sprintf("API returned status %d: %s", status, errorDetail(status, body))
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.AuthError(msg, nil)
	case http.StatusTooManyRequests:
		return domain.RateLimitError(msg, nil)
	default:
		return domain.APIError(msg, nil)
	}
}

func errorDetail(status int, body []byte) string {
	var resp Response
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != nil && resp.Error.Message != "" {
		return resp.Error.Message
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > maxErrorBody {
		detail = detail[:maxErrorBody] + "..."
	}
	if detail == "" {
		detail = http.StatusText(status)
	}
	return detail
}
