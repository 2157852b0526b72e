package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupNames connects to the Redis named by WA_ARCHIVE_TEST_REDIS.
func setupNames(t *testing.T) *Names {
	t.Helper()
	addr := os.Getenv("WA_ARCHIVE_TEST_REDIS")
	if addr == "" {
		t.Skip("WA_ARCHIVE_TEST_REDIS not set")
	}
	n, err := NewNames(Config{Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestNamesRoundTrip(t *testing.T) {
	n := setupNames(t)
	ctx := context.Background()
	id := "test-" + t.Name() + "@s.whatsapp.net"
	defer func() { _ = n.Delete(ctx, id) }()

	_, ok, err := n.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, n.Set(ctx, id, "Alice"))
	v, ok, err := n.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Alice", v)

	ttl, err := n.rdb.TTL(ctx, KeyPrefix+id).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, n.Delete(ctx, id, "other"))
	_, ok, err = n.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewNamesUnreachable(t *testing.T) {
	_, err := NewNames(Config{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
