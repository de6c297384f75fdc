// Package cache provides score persistence implementations. Stores are
// freshness-agnostic: they hand back whatever they hold and the scorer
// decides whether the entry is still usable.
package cache

import (
	"context"
	"sync"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

// Memory is an in-process ScoreStore for single-node deployments and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]scoring.CachedScore
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: map[string]scoring.CachedScore{}}
}

// Get returns the entry for urlHash if present.
func (m *Memory) Get(_ context.Context, urlHash string) (scoring.CachedScore, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[urlHash]
	return entry, ok, nil
}

// Put stores or replaces the entry for its URL hash.
func (m *Memory) Put(_ context.Context, entry scoring.CachedScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.URLHash] = entry
	return nil
}

// Len reports the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
