package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	appErrors "github.com/noah-isme/mbs-portal-api/pkg/errors"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCacheRepository is the in-process fallback used when Redis is
// not configured. Entries are never evicted except on expiry, matching
// the unbounded memoization the analysis pipeline was designed around.
type MemoryCacheRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryCacheRepository() *MemoryCacheRepository {
	return &MemoryCacheRepository{entries: make(map[string]memoryEntry)}
}

// Get retrieves and unmarshals the cached value into dest.
func (r *MemoryCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok {
		return appErrors.ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		r.mu.Lock()
		delete(r.entries, key)
		r.mu.Unlock()
		return appErrors.ErrCacheMiss
	}

	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores the value. A non-positive TTL keeps the entry until the
// process exits.
func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	r.mu.Lock()
	r.entries[key] = entry
	r.mu.Unlock()
	return nil
}

// DeleteByPattern removes entries matching a Redis-style glob with a
// single trailing wildcard, or one exact key.
func (r *MemoryCacheRepository) DeleteByPattern(_ context.Context, pattern string) error {
	prefix, wildcard := strings.CutSuffix(pattern, "*")

	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.entries {
		if (wildcard && strings.HasPrefix(key, prefix)) || key == pattern {
			delete(r.entries, key)
		}
	}
	return nil
}

// Len reports how many entries are held, expired ones included.
func (r *MemoryCacheRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
