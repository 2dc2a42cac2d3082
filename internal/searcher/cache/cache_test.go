package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/ranker"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
	fail bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]string)}
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return nil, false, errors.New("connection reset")
	}
	v, ok := b.data[key]
	return []byte(v), ok, nil
}

func (b *memBackend) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = string(val)
	return nil
}

func (b *memBackend) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			delete(b.data, k)
			n++
		}
	}
	return n, nil
}

func TestGetOrCompute(t *testing.T) {
	var lookups []bool
	c := New(newMemBackend(), time.Minute, func(hit bool) { lookups = append(lookups, hit) })
	ctx := context.Background()
	q := engine.Query{Text: "alpha beta", Mode: phrase.Exact}
	want := []ranker.Hit{{DocID: 1, Count: 2, Rank: 0.5}}

	calls := 0
	compute := func() ([]ranker.Hit, error) {
		calls++
		return want, nil
	}

	got, hit, err := c.GetOrCompute(ctx, q, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, want, got)

	got, hit, err = c.GetOrCompute(ctx, q, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, []bool{false, true}, lookups)
}

func TestGetOrComputeError(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), engine.Query{Text: "x"}, func() ([]ranker.Hit, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), engine.Query{Text: "x"})
	assert.False(t, ok)
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemBackend(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrCompute(context.Background(), engine.Query{Text: "slow"}, func() ([]ranker.Hit, error) {
				calls.Add(1)
				<-release
				return nil, nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestBackendErrorIsAMiss(t *testing.T) {
	b := newMemBackend()
	b.fail = true
	c := New(b, time.Minute, nil)
	_, ok := c.Get(context.Background(), engine.Query{Text: "x"})
	assert.False(t, ok)
	_, misses := c.Stats()
	assert.Equal(t, int64(1), misses)
}

func TestInvalidate(t *testing.T) {
	b := newMemBackend()
	b.data["other:key"] = "keep"
	c := New(b, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, engine.Query{Text: "a"}, []ranker.Hit{{DocID: 1}})
	c.Set(ctx, engine.Query{Text: "b"}, []ranker.Hit{{DocID: 2}})

	require.NoError(t, c.Invalidate(ctx))
	_, ok := c.Get(ctx, engine.Query{Text: "a"})
	assert.False(t, ok)
	assert.Equal(t, "keep", b.data["other:key"])
}

func TestBuildKey(t *testing.T) {
	base := engine.Query{Text: "Alpha  Beta", Mode: phrase.Exact, CaseInsensitive: true, Within: []int64{3, 1}}
	same := engine.Query{Text: "alpha beta", Mode: phrase.Exact, CaseInsensitive: true, Within: []int64{1, 3, 3}}
	assert.Equal(t, buildKey(base), buildKey(same))
	assert.True(t, strings.HasPrefix(buildKey(base), keyPrefix))

	sensitive := base
	sensitive.CaseInsensitive = false
	assert.NotEqual(t, buildKey(base), buildKey(sensitive))

	stemmed := base
	stemmed.Mode = phrase.Stemmed
	assert.NotEqual(t, buildKey(base), buildKey(stemmed))

	none := engine.Query{Text: "x"}
	empty := engine.Query{Text: "x", Within: []int64{}}
	assert.NotEqual(t, buildKey(none), buildKey(empty))
}
