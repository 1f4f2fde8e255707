// Package cache provides the TTL-bounded result cache in front of the feed fetcher.
package cache

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/tesso57/trendfeed/internal/domain/trend"
	"github.com/tesso57/trendfeed/internal/infrastructure/telemetry"
)

// Fetcher is the upstream the cache delegates misses to.
type Fetcher interface {
	Fetch(ctx context.Context, key trend.FetchKey) ([]string, error)
	Ready() bool
}

// TitleCache memoises successful fetches per FetchKey. Failures are never stored,
// and concurrent misses for one key share a single upstream call.
type TitleCache struct {
	next    Fetcher
	entries *expirable.LRU[trend.FetchKey, []string]
	flights singleflight.Group
	size    int
	logger  *slog.Logger
}

// New wraps next with a cache holding up to size entries for ttl each.
func New(next Fetcher, size int, ttl time.Duration, logger *slog.Logger) *TitleCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &TitleCache{
		next:    next,
		entries: expirable.NewLRU[trend.FetchKey, []string](size, nil, ttl),
		size:    size,
		logger:  logger,
	}
}

// Fetch returns cached titles for key or fetches them through the wrapped fetcher.
func (c *TitleCache) Fetch(ctx context.Context, key trend.FetchKey) ([]string, error) {
	if titles, ok := c.entries.Get(key); ok {
		c.logger.DebugContext(ctx, "cache hit", "source", key.Source, "url", key.URL, "limit", key.Limit)
		telemetry.RecordCacheHit()
		return slices.Clone(titles), nil
	}
	telemetry.RecordCacheMiss()

	// The shared flight outlives any single caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	v, err, shared := c.flights.Do(key.String(), func() (any, error) {
		if titles, ok := c.entries.Get(key); ok {
			return titles, nil
		}
		titles, err := c.next.Fetch(flightCtx, key)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, titles)
		telemetry.SetCacheEntries(c.entries.Len())
		return titles, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.DebugContext(ctx, "cache fetch coalesced", "source", key.Source)
	}
	return slices.Clone(v.([]string)), nil
}

// Ready reports whether the wrapped fetcher can serve requests.
func (c *TitleCache) Ready() bool {
	return c.next.Ready()
}

// Len returns the number of live entries.
func (c *TitleCache) Len() int {
	return c.entries.Len()
}

// Cap returns the configured capacity.
func (c *TitleCache) Cap() int {
	return c.size
}

// Purge drops every entry.
func (c *TitleCache) Purge() {
	c.entries.Purge()
	telemetry.SetCacheEntries(0)
}
