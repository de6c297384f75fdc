package renderer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lauravimes/leadblitz/internal/clock/fake"
	"github.com/lauravimes/leadblitz/internal/scoring"
)

func TestCacheHitWithinTTL(t *testing.T) {
	clk := fake.New(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	cache := NewCache(24*time.Hour, clk)

	cache.Put("https://example.com", scoring.RenderResult{Success: true, HTML: "<html>rendered</html>"})

	clk.Advance(23 * time.Hour)
	got, ok := cache.Get("https://example.com")
	require.True(t, ok)
	assert.Equal(t, "<html>rendered</html>", got.HTML)
	assert.True(t, got.FromCache)
}

func TestCacheExpiry(t *testing.T) {
	clk := fake.New(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	cache := NewCache(24*time.Hour, clk)

	cache.Put("https://example.com", scoring.RenderResult{Success: true, HTML: "old"})

	clk.Advance(25 * time.Hour)
	_, ok := cache.Get("https://example.com")
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Equal(t, 0, stats.TotalEntries, "expired entry should be evicted on read")
}

func TestCacheSkipsFailedRenders(t *testing.T) {
	clk := fake.New(time.Now())
	cache := NewCache(time.Hour, clk)

	cache.Put("https://example.com", scoring.RenderResult{Success: false, Errors: []string{"Page load timeout"}})

	_, ok := cache.Get("https://example.com")
	assert.False(t, ok)
}

func TestCacheStats(t *testing.T) {
	clk := fake.New(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	cache := NewCache(time.Hour, clk)

	cache.Put("https://a.com", scoring.RenderResult{Success: true})
	clk.Advance(2 * time.Hour)
	cache.Put("https://b.com", scoring.RenderResult{Success: true})

	stats := cache.Stats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.ValidEntries)
	assert.Equal(t, 1, stats.ExpiredEntries)
}

func TestCacheClear(t *testing.T) {
	clk := fake.New(time.Now())
	cache := NewCache(time.Hour, clk)
	cache.Put("https://a.com", scoring.RenderResult{Success: true})

	cache.Clear()
	assert.Equal(t, 0, cache.Stats().TotalEntries)
}

func TestCacheKeysDistinctPerURL(t *testing.T) {
	clk := fake.New(time.Now())
	cache := NewCache(time.Hour, clk)

	cache.Put("https://a.com", scoring.RenderResult{Success: true, HTML: "a"})
	cache.Put("https://b.com", scoring.RenderResult{Success: true, HTML: "b"})

	a, ok := cache.Get("https://a.com")
	require.True(t, ok)
	b, ok := cache.Get("https://b.com")
	require.True(t, ok)
	assert.NotEqual(t, a.HTML, b.HTML)
}
