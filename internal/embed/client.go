package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// Dims is the fixed embedding dimension; the zero-vector fallback and the
// vector store both assume it.
const Dims = 1536

const (
	defaultRetries = 3
	baseBackoff    = time.Second
)

// Client wraps an Eino embedder with retry, exponential backoff, a TTL
// cache, and a zero-vector degraded fallback. A zero vector keeps the
// caller alive; vector search over it matches nothing useful, which the
// retrieval engine tolerates by falling back to its lexical pass.
type Client struct {
	embedder embedding.Embedder
	cache    *Cache
	retries  int
}

// NewClient builds a Client around embedder. cache may be nil to disable
// caching.
func NewClient(embedder embedding.Embedder, cache *Cache) *Client {
	return &Client{embedder: embedder, cache: cache, retries: defaultRetries}
}

// Embed returns the embedding for text. On persistent provider failure it
// returns a zero vector and nil error; the bool reports whether the vector
// is a real embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, bool) {
	if c.cache != nil {
		if v, ok := c.cache.Get(text); ok {
			return v, true
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				slog.Error("embed: context done during backoff, degrading to zero vector", "error", ctx.Err())
				return make([]float64, Dims), false
			case <-time.After(backoff):
			}
		}
		vecs, err := c.embedder.EmbedStrings(ctx, []string{text})
		if err != nil {
			lastErr = err
			slog.Warn("embed: attempt failed", "attempt", attempt+1, "error", err)
			continue
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			lastErr = fmt.Errorf("embedder returned no vector")
			continue
		}
		v := vecs[0]
		if c.cache != nil {
			c.cache.Put(text, v)
		}
		return v, true
	}

	slog.Error("embed: all attempts failed, degrading to zero vector", "error", lastErr)
	return make([]float64, Dims), false
}

// Cache exposes the underlying cache for sweep scheduling; may be nil.
func (c *Client) Cache() *Cache {
	return c.cache
}
