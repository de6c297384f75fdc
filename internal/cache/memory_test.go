package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

func TestMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	ctx := context.Background()

	entry := scoring.CachedScore{
		URLHash:       "hash-1",
		NormalizedURL: "https://example.com",
		Score:         scoring.CombinedScore{FinalScore: 61},
		FetchedAt:     time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, store.Put(ctx, entry))

	got, ok, err := store.Get(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 61, got.Score.FinalScore)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryMiss(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	_, ok, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryOverwrite(t *testing.T) {
	t.Parallel()

	store := NewMemory()
	ctx := context.Background()

	first := scoring.CachedScore{URLHash: "h", Score: scoring.CombinedScore{FinalScore: 10}}
	second := scoring.CachedScore{URLHash: "h", Score: scoring.CombinedScore{FinalScore: 55}}
	require.NoError(t, store.Put(ctx, first))
	require.NoError(t, store.Put(ctx, second))

	got, ok, err := store.Get(ctx, "h")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 55, got.Score.FinalScore)
	assert.Equal(t, 1, store.Len())
}
