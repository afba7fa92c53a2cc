package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdityaGahukar/PingWave/internal/domain"
)

func TestMemoryCache_BuildKeyIsOrderIndependent(t *testing.T) {
	c := NewMemoryHistoryCache()

	assert.Equal(t, c.BuildKey("alice", "bob"), c.BuildKey("bob", "alice"))
	assert.NotEqual(t, c.BuildKey("alice", "bob"), c.BuildKey("alice", "carol"))
}

func TestMemoryCache_SetGetRoundTrip(t *testing.T) {
	c := NewMemoryHistoryCache()
	ctx := context.Background()
	key := c.BuildKey("alice", "bob")

	messages := []domain.Message{
		{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"},
	}
	require.NoError(t, c.Set(ctx, key, messages, time.Minute))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
}

func TestMemoryCache_MissOnUnknownKey(t *testing.T) {
	c := NewMemoryHistoryCache()

	_, err := c.Get(context.Background(), "history:never:stored")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_ExpiredEntryMisses(t *testing.T) {
	c := NewMemoryHistoryCache()
	ctx := context.Background()
	key := c.BuildKey("alice", "bob")

	require.NoError(t, c.Set(ctx, key, []domain.Message{{ID: "m1"}}, -time.Second))

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_DeleteInvalidates(t *testing.T) {
	c := NewMemoryHistoryCache()
	ctx := context.Background()
	key := c.BuildKey("alice", "bob")

	require.NoError(t, c.Set(ctx, key, []domain.Message{{ID: "m1"}}, time.Minute))
	require.NoError(t, c.Delete(ctx, key))

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_GetReturnsCopy(t *testing.T) {
	c := NewMemoryHistoryCache()
	ctx := context.Background()
	key := c.BuildKey("alice", "bob")

	require.NoError(t, c.Set(ctx, key, []domain.Message{{ID: "m1", Text: "original"}}, time.Minute))

	first, err := c.Get(ctx, key)
	require.NoError(t, err)
	first[0].Text = "mutated"

	second, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "original", second[0].Text)
}
