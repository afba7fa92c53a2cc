package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AdityaGahukar/PingWave/internal/domain"
)

// MemoryHistoryCache implements HistoryCache in process memory. Used
// when redis is disabled, and in tests.
type MemoryHistoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	messages  []domain.Message
	expiresAt time.Time
}

// NewMemoryHistoryCache creates an in-memory history cache.
func NewMemoryHistoryCache() *MemoryHistoryCache {
	return &MemoryHistoryCache{
		entries: make(map[string]memoryEntry),
	}
}

// BuildKey returns the cache key for a conversation, independent of
// participant order.
func (c *MemoryHistoryCache) BuildKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("history:%s:%s", userA, userB)
}

func (c *MemoryHistoryCache) Get(ctx context.Context, key string) ([]domain.Message, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrCacheMiss
	}

	out := make([]domain.Message, len(entry.messages))
	copy(out, entry.messages)
	return out, nil
}

func (c *MemoryHistoryCache) Set(ctx context.Context, key string, messages []domain.Message, ttl time.Duration) error {
	stored := make([]domain.Message, len(messages))
	copy(stored, messages)

	c.mu.Lock()
	c.entries[key] = memoryEntry{
		messages:  stored,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryHistoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryHistoryCache) Close() error {
	return nil
}
