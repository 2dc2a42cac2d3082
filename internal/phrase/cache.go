package phrase

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
)

// Cache memoizes compiled phrases per model, query and options. Compiled
// phrases are immutable so entries are shared between callers.
type Cache struct {
	lru      *lru.Cache[string, *Compiled]
	observer func(hit bool)
}

// NewCache creates a cache holding up to size phrases. observer, when set,
// is told about every hit and miss.
func NewCache(size int, observer func(hit bool)) (*Cache, error) {
	l, err := lru.New[string, *Compiled](size)
	if err != nil {
		return nil, fmt.Errorf("phrase cache: %w", err)
	}
	return &Cache{lru: l, observer: observer}, nil
}

// Compile returns the cached phrase or compiles and stores it. Failed
// compilations are not cached.
func (c *Cache) Compile(query string, m *lang.Model, opts Options) (*Compiled, error) {
	key := cacheKey(query, m, opts)
	if p, ok := c.lru.Get(key); ok {
		c.observe(true)
		return p, nil
	}
	c.observe(false)
	p, err := Compile(query, m, opts)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, p)
	return p, nil
}

// Len is the number of cached phrases.
func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) observe(hit bool) {
	if c.observer != nil {
		c.observer(hit)
	}
}

func cacheKey(query string, m *lang.Model, opts Options) string {
	return fmt.Sprintf("%s@%s|%d|%d|%t|%d|%s", m.ID, m.Version, opts.Mode, opts.Field, opts.CaseInsensitive, opts.Near, query)
}
