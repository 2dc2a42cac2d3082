// Package cache memoizes ranked search results in Redis. Concurrent misses
// on the same query are collapsed into one computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ranker"
)

const keyPrefix = "search:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type QueryCache struct {
	client   Backend
	ttl      time.Duration
	group    singleflight.Group
	observer func(hit bool)
	logger   *slog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
}

// New creates a cache. observer may be nil.
func New(client Backend, ttl time.Duration, observer func(hit bool)) *QueryCache {
	return &QueryCache{
		client:   client,
		ttl:      ttl,
		observer: observer,
		logger:   slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, q engine.Query) ([]ranker.Hit, bool) {
	key := buildKey(q)
	data, found, err := c.client.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if !found {
		c.miss()
		return nil, false
	}
	var hits []ranker.Hit
	if err := json.Unmarshal(data, &hits); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.observer != nil {
		c.observer(true)
	}
	c.logger.Debug("cache hit", "query", q.Text, "key", key)
	return hits, true
}

func (c *QueryCache) Set(ctx context.Context, q engine.Query, hits []ranker.Hit) {
	key := buildKey(q)
	data, err := json.Marshal(hits)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached hits or runs computeFn once per key across
// concurrent callers. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q engine.Query,
	computeFn func() ([]ranker.Hit, error),
) ([]ranker.Hit, bool, error) {
	if hits, ok := c.Get(ctx, q); ok {
		return hits, true, nil
	}
	key := buildKey(q)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		hits, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, q, hits)
		return hits, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ranker.Hit), false, nil
}

// Invalidate drops every cached result. Called after entries change.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.observer != nil {
		c.observer(false)
	}
}

// buildKey hashes the normalized query. Id filters are order-insensitive.
func buildKey(q engine.Query) string {
	q.Text = strings.Join(strings.Fields(q.Text), " ")
	if q.CaseInsensitive {
		q.Text = strings.ToLower(q.Text)
	}
	q.Lang = strings.ToLower(strings.TrimSpace(q.Lang))
	q.Category = strings.ToLower(q.Category)
	q.Within = sortedCopy(q.Within)
	q.Exclude = sortedCopy(q.Exclude)

	raw, _ := json.Marshal(q)
	// An empty Within restricts to nothing, unlike an absent one.
	raw = fmt.Appendf(raw, "|within=%t", q.Within != nil)
	hash := sha256.Sum256(raw)
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func sortedCopy(ids []int64) []int64 {
	if ids == nil {
		return nil
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
