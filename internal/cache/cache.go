// Package cache provides the in-process read cache that sits in front of the
// warehouse. Entries expire lazily after a TTL, the cache is bounded with
// least-recently-used eviction, and a commit invalidates everything at once.
package cache

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/statline/internal/model"
)

// Cache is a concurrent-safe TTL + LRU cache. The zero value is not usable;
// construct with New.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front=newest, back=oldest
	maxEntries int
	ttl        time.Duration
	generation uint64

	hits   atomic.Int64
	misses atomic.Int64

	nowFunc func() time.Time
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries    int     `json:"entries" yaml:"entries"`
	MaxEntries int     `json:"max_entries" yaml:"max_entries"`
	Hits       int64   `json:"hits" yaml:"hits"`
	Misses     int64   `json:"misses" yaml:"misses"`
	HitRate    float64 `json:"hit_rate" yaml:"hit_rate"`
}

// New creates a cache holding at most maxEntries values for ttl each.
func New[V any](ttl time.Duration, maxEntries int) *Cache[V] {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache[V]{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		nowFunc:    time.Now,
	}
}

// Get returns the value for key. Expired entries are dropped and count as a
// miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}

	e := el.Value.(*entry[V])
	if !c.nowFunc().Before(e.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses.Add(1)
		return zero, false
	}

	c.order.MoveToFront(el)
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

// Generation returns a token identifying the current cache contents. Pass it
// to SetIfCurrent after a slow read so the result of a read that raced with
// InvalidateAll is never stored.
func (c *Cache[V]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// SetIfCurrent stores value only if no invalidation happened since gen was
// taken. It reports whether the value was stored.
func (c *Cache[V]) SetIfCurrent(gen uint64, key string, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.setLocked(key, value)
	return true
}

func (c *Cache[V]) setLocked(key string, value V) {
	expires := c.nowFunc().Add(c.ttl)

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expires
		c.order.MoveToFront(el)
		return
	}

	for len(c.entries) >= c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry[V]).key)
	}

	c.entries[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expires})
}

// InvalidateAll drops every entry and bumps the generation.
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.generation++
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache performance statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

// KeyFor derives the cache key of a normalized stats query. Every parameter
// takes part in the key.
func KeyFor(q model.QueryParams) string {
	return Key("query",
		q.Season, q.WeekStart, q.WeekEnd, q.Position, q.Team,
		strings.ToLower(q.Player), q.Page, q.PageSize, q.Sort,
	)
}

// Key joins an operation name and its arguments into a cache key.
func Key(op string, parts ...any) string {
	var b strings.Builder
	b.WriteString(op)
	for _, p := range parts {
		b.WriteByte('|')
		fmt.Fprint(&b, p)
	}
	return b.String()
}
