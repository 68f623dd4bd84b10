package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/statline/internal/model"
)

func TestCache_BasicGetSet(t *testing.T) {
	c := New[string](time.Hour, 10)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", "alpha")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "alpha", v)

	c.Set("a", "again")
	v, _ = c.Get("a")
	assert.Equal(t, "again", v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_LazyExpiry(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	c := New[int](300*time.Second, 10)
	c.nowFunc = func() time.Time { return now }

	c.Set("k", 1)
	now = now.Add(299 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is removed on read")
}

func TestCache_LRUEviction(t *testing.T) {
	c := New[int](time.Hour, 3)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch "a" so "b" becomes the oldest.
	_, _ = c.Get("a")
	c.Set("d", 4)

	_, ok := c.Get("b")
	assert.False(t, ok)
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
	assert.Equal(t, 3, c.Len())
}

func TestCache_InvalidateAll(t *testing.T) {
	c := New[int](time.Hour, 10)
	c.Set("a", 1)
	c.Set("b", 2)

	c.InvalidateAll()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_SetIfCurrent(t *testing.T) {
	c := New[int](time.Hour, 10)

	gen := c.Generation()
	assert.True(t, c.SetIfCurrent(gen, "fresh", 1))

	stale := c.Generation()
	c.InvalidateAll()
	assert.False(t, c.SetIfCurrent(stale, "stale", 2))
	_, ok := c.Get("stale")
	assert.False(t, ok, "a read that raced with invalidation must not repopulate")
}

func TestCache_Stats(t *testing.T) {
	c := New[int](time.Hour, 5)
	c.Set("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("a")
	_, _ = c.Get("missing")

	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, 5, s.MaxEntries)
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 0.6667, s.HitRate, 0.001)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Hour, 100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%20)
			c.Set(key, i)
			_, _ = c.Get(key)
			if i%10 == 0 {
				c.InvalidateAll()
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 100)
}

func TestKeyFor(t *testing.T) {
	base := model.QueryParams{Season: 2025, WeekStart: 3, WeekEnd: 3, Position: "QB", Page: 1, PageSize: 100, Sort: "fantasy_points"}

	assert.Equal(t, KeyFor(base), KeyFor(base))

	other := base
	other.Team = "KC"
	assert.NotEqual(t, KeyFor(base), KeyFor(other))

	paged := base
	paged.Page = 2
	assert.NotEqual(t, KeyFor(base), KeyFor(paged))

	upper, lower := base, base
	upper.Player = "MAHOMES"
	lower.Player = "mahomes"
	assert.Equal(t, KeyFor(upper), KeyFor(lower))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "top|2024|QB|5", Key("top", 2024, "QB", 5))
	assert.Equal(t, "stats", Key("stats"))
}
