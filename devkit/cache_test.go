package devkit_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCache_TTL(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	c := devkit.NewTTLCache[string](16, time.Second, devkit.WithClock(clk.Now))

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	clk.Advance(999 * time.Millisecond)
	_, ok = c.Get("k")
	assert.True(t, ok, "still visible just before expiry")

	clk.Advance(time.Millisecond)
	got, ok = c.Get("k")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestCache_ExpiredEntryCountedUntilRead(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	c := devkit.NewTTLCache[int](16, time.Second, devkit.WithClock(clk.Now))

	c.Set("a", 1)
	clk.Advance(2 * time.Second)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_SetOverwritesAndRefreshesExpiry(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	c := devkit.NewTTLCache[string](16, time.Second, devkit.WithClock(clk.Now))

	c.Set("k", "old")
	clk.Advance(800 * time.Millisecond)
	c.Set("k", "new")
	clk.Advance(800 * time.Millisecond)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()
	c := devkit.NewTTLCache[string](16, time.Minute)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Invalidate("a")
	c.Invalidate("missing")

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.InvalidateAll()
	assert.Equal(t, 0, c.Len())
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	c := devkit.NewTTLCache[int](3, time.Minute, devkit.WithClock(clk.Now))

	for i := range 3 {
		c.Set(fmt.Sprintf("k%d", i), i)
		clk.Advance(time.Millisecond)
	}
	c.Set("k0", 10) // overwrite does not evict
	assert.Equal(t, 3, c.Len())

	c.Set("k3", 3)
	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("k1")
	assert.False(t, ok, "k1 was the oldest write")
	v, ok := c.Get("k0")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	c := devkit.NewTTLCache[int](0, time.Minute)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				k := fmt.Sprintf("g%d-%d", g, i%20)
				c.Set(k, i)
				c.Get(k)
				if i%50 == 0 {
					c.Invalidate(k)
				}
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 8*20)
}
