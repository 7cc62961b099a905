package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/article-analyzer/internal/cache"
	"github.com/spherical/article-analyzer/internal/domain"
)

type countingCompleter struct {
	calls int
	err   error
}

func (c *countingCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &domain.Completion{
		Text:  "answer to " + req.Instruction,
		Model: "m",
		Usage: domain.Usage{PromptTokens: 10, CompletionTokens: 2},
	}, nil
}

type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (brokenStore) Delete(ctx context.Context, key string) error {
	return nil
}

func (brokenStore) Close() error {
	return nil
}

func TestCachingCompleter_HitAfterMiss(t *testing.T) {
	store := cache.NewMemoryClient(100)
	defer store.Close()
	next := &countingCompleter{}
	c := NewCachingCompleter(next, store, "m", time.Hour, nil)

	first, err := c.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	second, err := c.Complete(context.Background(), testRequest)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first, second)
}

func TestCachingCompleter_KeyIncludesRequestAndModel(t *testing.T) {
	store := cache.NewMemoryClient(100)
	defer store.Close()
	next := &countingCompleter{}

	c := NewCachingCompleter(next, store, "m", time.Hour, nil)
	_, _ = c.Complete(context.Background(), testRequest)

	other := testRequest
	other.MaxTokens = 10
	_, _ = c.Complete(context.Background(), other)

	other = testRequest
	other.ArticleText = "different"
	_, _ = c.Complete(context.Background(), other)

	_, _ = NewCachingCompleter(next, store, "other-model", time.Hour, nil).Complete(context.Background(), testRequest)

	assert.Equal(t, 4, next.calls)
	assert.Equal(t, 4, store.Len())
}

func TestCachingCompleter_FailuresNotCached(t *testing.T) {
	store := cache.NewMemoryClient(100)
	defer store.Close()
	next := &countingCompleter{err: domain.APIError("down", nil)}
	c := NewCachingCompleter(next, store, "m", time.Hour, nil)

	_, err := c.Complete(context.Background(), testRequest)
	require.Error(t, err)
	_, err = c.Complete(context.Background(), testRequest)
	require.Error(t, err)

	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 0, store.Len())
}

func TestCachingCompleter_StoreErrorsAreIgnored(t *testing.T) {
	next := &countingCompleter{}
	c := NewCachingCompleter(next, brokenStore{}, "m", time.Hour, nil)

	completion, err := c.Complete(context.Background(), testRequest)
	require.NoError(t, err)
	assert.Equal(t, "answer to Summarize the article.", completion.Text)
	assert.Equal(t, 1, next.calls)
}
