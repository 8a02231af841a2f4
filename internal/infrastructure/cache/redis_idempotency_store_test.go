package cache

import (
	"context"
	"testing"

	"github.com/harshadelights/pricing/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// unreachableRedis points at a port nothing listens on
var unreachableRedis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

func TestNewRedisIdempotencyStore_Unreachable(t *testing.T) {
	store, err := NewRedisIdempotencyStore(context.Background(), unreachableRedis)
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestApplyKey(t *testing.T) {
	assert.Equal(t, "apply:PR-2024-00001:SINV-1", ApplyKey("PR-2024-00001", "SINV-1"))
}

func TestIdempotencyStoreFactory_CreateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("no host uses memory", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(config.RedisConfig{}).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis falls back to memory", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(unreachableRedis, WithLogger(zap.NewNop())).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(unreachableRedis, WithInMemoryFallback(false)).CreateStore(ctx)
		require.Error(t, err)
		assert.Nil(t, store)
	})
}
