package wikimedia

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"mahatour/models"
	"mahatour/rdx"

	"go.uber.org/zap"
)

type Lookuper interface {
	Lookup(ctx context.Context, term string) (*models.ImageMatch, error)
}

// CachedLookup remembers successful lookups in the shared cache. Misses are
// not remembered so a later upload to Commons can still be found.
type CachedLookup struct {
	Next  Lookuper
	Cache rdx.Cache
	TTL   time.Duration
	Log   *zap.Logger
}

type refreshKey struct{}

// WithRefresh marks ctx so CachedLookup skips its memo and asks Commons
// again. The fresh result still replaces the memo entry.
func WithRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, refreshKey{}, true)
}

func refreshing(ctx context.Context) bool {
	v, _ := ctx.Value(refreshKey{}).(bool)
	return v
}

func cacheKey(term string) string {
	return "wikimedia:lookup:" + strings.ToLower(strings.TrimSpace(term))
}

func (c *CachedLookup) Lookup(ctx context.Context, term string) (*models.ImageMatch, error) {
	key := cacheKey(term)

	if !refreshing(ctx) {
		cached, err := c.Cache.Get(ctx, key)
		switch {
		case err == nil:
			var m models.ImageMatch
			if jerr := json.Unmarshal([]byte(cached), &m); jerr == nil {
				return &m, nil
			}
			c.Log.Warn("discarding corrupt wikimedia cache entry", zap.String("key", key))
		case !errors.Is(err, rdx.ErrMiss):
			c.Log.Warn("wikimedia cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	m, err := c.Next.Lookup(ctx, term)
	if err != nil {
		return nil, err
	}

	if data, jerr := json.Marshal(m); jerr == nil {
		if serr := c.Cache.Set(ctx, key, string(data), c.TTL); serr != nil {
			c.Log.Warn("wikimedia cache write failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return m, nil
}
