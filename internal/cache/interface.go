package cache

import (
	"context"
	"errors"
	"time"

	"github.com/AdityaGahukar/PingWave/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// HistoryCache caches conversation history reads. Keys are
// order-independent over the two participant ids so that either side
// of a conversation hits the same entry.
type HistoryCache interface {
	Get(ctx context.Context, key string) ([]domain.Message, error)
	Set(ctx context.Context, key string, messages []domain.Message, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	BuildKey(userA, userB string) string
	Close() error
}
