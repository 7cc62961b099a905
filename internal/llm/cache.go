package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/spherical/article-analyzer/internal/cache"
	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/observability"
)

const cacheNamespace = "completion"

// CachingCompleter memoizes successful completions. Failures are never
// cached and cache errors never fail a completion.
type CachingCompleter struct {
	next   domain.Completer
	store  cache.Client
	model  string
	ttl    time.Duration
	logger *observability.Logger
}

// NewCachingCompleter wraps next with store. model scopes the cache key so
// switching models does not return stale answers.
func NewCachingCompleter(next domain.Completer, store cache.Client, model string, ttl time.Duration, logger *observability.Logger) *CachingCompleter {
	if logger == nil {
		logger = observability.Nop()
	}
	return &CachingCompleter{
		next:   next,
		store:  store,
		model:  model,
		ttl:    ttl,
		logger: logger.WithComponent("completion-cache"),
	}
}

type cachedCompletion struct {
	Text             string `json:"text"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// Complete implements domain.Completer.
func (c *CachingCompleter) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	key := c.key(req)

	if data, err := c.store.Get(ctx, key); err == nil {
		var cached cachedCompletion
		if err := json.Unmarshal(data, &cached); err == nil && cached.Text != "" {
			c.logger.Debug().Str("key", key).Msg("Cache hit")
			return &domain.Completion{
				Text:  cached.Text,
				Model: cached.Model,
				Usage: domain.Usage{PromptTokens: cached.PromptTokens, CompletionTokens: cached.CompletionTokens},
			}, nil
		}
		c.logger.Warn().Str("key", key).Msg("Discarding unreadable cache entry")
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn().Err(err).Msg("Cache lookup failed")
	}

	completion, err := c.next.Complete(ctx, req)
	if err != nil || completion == nil {
		return completion, err
	}

	data, err := json.Marshal(cachedCompletion{
		Text:             completion.Text,
		Model:            completion.Model,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	})
	if err == nil {
		err = c.store.Set(ctx, key, data, c.ttl)
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("Cache store failed")
	}

	return completion, nil
}

func (c *CachingCompleter) key(req domain.CompletionRequest) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(req.MaxTokens)))
	h.Write([]byte{0})
	h.Write([]byte(req.Instruction))
	h.Write([]byte{0})
	h.Write([]byte(req.ArticleText))
	return cache.Key(cacheNamespace, hex.EncodeToString(h.Sum(nil)))
}
