package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/article-analyzer/internal/domain"
)

var testRequest = domain.CompletionRequest{
	Instruction: "Summarize the article.",
	ArticleText: "Article body.",
	MaxTokens:   1024,
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{APIKey: "sk-test"})

	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultModel, c.Model())
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, 0, c.retry.MaxRetries)

	c = NewClient(Config{BaseURL: "http://localhost:8080/v1/", Model: "gpt-4o-mini", MaxRetries: 2})
	assert.Equal(t, "http://localhost:8080/v1", c.baseURL)
	assert.Equal(t, "gpt-4o-mini", c.Model())
	assert.Equal(t, 2, c.retry.MaxRetries)
}

func TestComplete_Success(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","model":"gpt-4o-2024-08-06","choices":[{"message":{"role":"assistant","content":"  The summary.\n"},"finish_reason":"stop"}],"usage":{"prompt_tokens":42,"completion_tokens":7,"total_tokens":49}}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, APIKey: "sk-test"})
	completion, err := c.Complete(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Equal(t, "The summary.", completion.Text)
	assert.Equal(t, "gpt-4o-2024-08-06", completion.Model)
	assert.Equal(t, domain.Usage{PromptTokens: 42, CompletionTokens: 7}, completion.Usage)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, Message{Role: "system", Content: "Summarize the article."}, got.Messages[0])
	assert.Equal(t, Message{Role: "user", Content: "Article body."}, got.Messages[1])
}

func TestComplete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType domain.ErrorType
		wantMsg  string
	}{
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
			wantType: domain.ErrorTypeAuth,
			wantMsg:  "API returned status 401: Incorrect API key provided",
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     `forbidden`,
			wantType: domain.ErrorTypeAuth,
			wantMsg:  "API returned status 403: forbidden",
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"Rate limit reached"}}`,
			wantType: domain.ErrorTypeRateLimit,
			wantMsg:  "API returned status 429: Rate limit reached",
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     ``,
			wantType: domain.ErrorTypeAPI,
			wantMsg:  "API returned status 500: Internal Server Error",
		},
		{
			name:     "no choices",
			status:   http.StatusOK,
			body:     `{"id":"x","choices":[]}`,
			wantType: domain.ErrorTypeResponse,
			wantMsg:  "response contained no choices",
		},
		{
			name:     "blank content",
			status:   http.StatusOK,
			body:     `{"choices":[{"message":{"content":"   "}}]}`,
			wantType: domain.ErrorTypeResponse,
			wantMsg:  "response contained empty content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewClient(Config{BaseURL: server.URL, APIKey: "k"}).Complete(context.Background(), testRequest)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, tt.wantType), "got %v", err)
			assert.Equal(t, tt.wantMsg, domain.FailureMessage(err))
		})
	}
}

func TestComplete_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{not json`)
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).Complete(context.Background(), testRequest)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeResponse))
}

func TestComplete_Stream(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, `data: {"model":"gpt-4o-mini","choices":[{"delta":{"role":"assistant","content":"Hello"}}]}`+"\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":", world"},"finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Stream: true})
	completion, err := c.Complete(context.Background(), testRequest)
	require.NoError(t, err)

	assert.True(t, got.Stream)
	require.NotNil(t, got.StreamOptions)
	assert.True(t, got.StreamOptions.IncludeUsage)
	assert.Equal(t, "Hello, world", completion.Text)
	assert.Equal(t, "gpt-4o-mini", completion.Model)
	assert.Equal(t, domain.Usage{PromptTokens: 5, CompletionTokens: 2}, completion.Usage)
}

func TestComplete_EmptyStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL, Stream: true}).Complete(context.Background(), testRequest)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeResponse))
}

func TestComplete_NoRetryByDefault(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).Complete(context.Background(), testRequest)
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestComplete_RetriesTransientStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, MaxRetries: 3})
	c.retry.InitialBackoff = time.Millisecond
	c.retry.MaxBackoff = 5 * time.Millisecond

	completion, err := c.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "ok", completion.Text)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestComplete_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, MaxRetries: 3})
	c.retry.InitialBackoff = time.Millisecond

	_, err := c.Complete(context.Background(), testRequest)
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeAPI))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestComplete_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(Config{BaseURL: server.URL}).Complete(ctx, testRequest)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &RetryConfig{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}

	assert.Equal(t, time.Second, calculateBackoff(0, cfg))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, cfg))
	assert.Equal(t, 5*time.Second, calculateBackoff(3, cfg))
}

func TestShouldRetry(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, shouldRetry(code), "status %d", code)
	}
	for _, code := range []int{400, 401, 403, 404} {
		assert.False(t, shouldRetry(code), "status %d", code)
	}
}
