package gcs

import (
	"context"
	"time"

	"github.com/thomas-vilte/backlog-responder/internal/cache"
	"github.com/thomas-vilte/backlog-responder/internal/logger"
	"github.com/thomas-vilte/backlog-responder/internal/ports"
)

var _ ports.PromptLoader = (*CachedLoader)(nil)

// CachedLoader keeps the last prompt for ttl. Failures are never cached.
type CachedLoader struct {
	next  ports.PromptLoader
	cache *cache.Cache
	key   string
}

// NewCachedLoader wraps next. bucket and path only feed the cache key.
func NewCachedLoader(next ports.PromptLoader, bucket, path string, ttl time.Duration) *CachedLoader {
	c := cache.NewCache(ttl)
	return &CachedLoader{
		next:  next,
		cache: c,
		key:   c.GenerateHash(bucket + "/" + path),
	}
}

func (c *CachedLoader) LoadPrompt(ctx context.Context) (string, error) {
	if text, ok := c.cache.Get(c.key); ok {
		logger.Debug(ctx, "system prompt cache hit", "cache_key_hash", c.key)
		return text, nil
	}

	text, err := c.next.LoadPrompt(ctx)
	if err != nil {
		return "", err
	}

	c.cache.Set(c.key, text)
	return text, nil
}

// Invalidate forces the next call to hit storage.
func (c *CachedLoader) Invalidate() {
	c.cache.Invalidate(c.key)
}
