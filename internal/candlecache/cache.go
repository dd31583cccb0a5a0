// Package candlecache memoizes candle fetches per bot so the rest of the
// engine's rate-limit discipline can rely on a single cache-miss path.
package candlecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// Fetcher is the narrow dependency the cache wraps; satisfied by
// *marketdata.Client.
type Fetcher interface {
	Candles(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]domain.Candle, error)
}

type entry struct {
	value     []domain.Candle
	fetchedAt time.Time
}

// Cache is a per-bot, in-memory TTL memo over candle fetches. It is not
// safe to share across bots — each bot actor owns its own Cache instance.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a candle cache backed by fetcher with the given TTL.
func New(fetcher Fetcher, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// key normalizes startMs to the enclosing minute to maximize hit rate on
// rolling windows, matching the original platform's get_candles_cached.
func key(symbol, interval string, startMs int64) string {
	bucket := (startMs / 60000) * 60000
	return fmt.Sprintf("%s_%s_%d", symbol, interval, bucket)
}

// Get returns cached candles within TTL without a network call; on a miss
// it fetches fresh data and stores it; on fetch error it falls back to the
// last cached value (stale) if one exists, otherwise propagates the error.
func (c *Cache) Get(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]domain.Candle, error) {
	k := key(symbol, interval, startMs)

	c.mu.Lock()
	if e, ok := c.entries[k]; ok && time.Since(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return e.value, nil
	}
	stale, hadStale := c.entries[k]
	c.mu.Unlock()

	fresh, err := c.fetcher.Candles(ctx, symbol, interval, startMs, endMs)
	if err != nil {
		if hadStale {
			return stale.value, nil
		}
		return nil, fmt.Errorf("fetching candles %s/%s: %w", symbol, interval, err)
	}

	c.mu.Lock()
	c.entries[k] = entry{value: fresh, fetchedAt: time.Now()}
	c.mu.Unlock()
	return fresh, nil
}
