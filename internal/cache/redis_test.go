package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	c := NewRedisCacheWithClient(client, DefaultConfig())
	t.Cleanup(func() { c.Close() })

	return c, mr
}

func TestNewRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c, err := NewRedisCache(RedisConfig{
		Addr:   mr.Addr(),
		Config: DefaultConfig(),
	})
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c)
}

func TestNewRedisCache_ConnectionError(t *testing.T) {
	_, err := NewRedisCache(RedisConfig{
		Addr:   "localhost:99999", // invalid port
		Config: DefaultConfig(),
	})
	assert.Error(t, err)
}

func TestRedisCache_SetAndGet(t *testing.T) {
	c, _ := setupRedisCache(t)
	ctx := context.Background()

	err := c.Set(ctx, "decision", []byte("1"), time.Minute)
	require.NoError(t, err)

	value, err := c.Get(ctx, "decision")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)
}

func TestRedisCache_GetMiss(t *testing.T) {
	c, _ := setupRedisCache(t)

	_, err := c.Get(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, IsCacheMiss(err))
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := setupRedisCache(t)
	ctx := context.Background()

	err := c.Set(ctx, "decision", []byte("1"), time.Minute)
	require.NoError(t, err)

	err = c.Delete(ctx, "decision")
	require.NoError(t, err)

	_, err = c.Get(ctx, "decision")
	assert.True(t, IsCacheMiss(err))
}

func TestRedisCache_DeleteByPrefix(t *testing.T) {
	c, mr := setupRedisCache(t)
	ctx := context.Background()

	premium := uuid.New()
	free := uuid.New()
	channelID := uuid.New()

	require.NoError(t, c.Set(ctx, RoleChannelKey(premium, channelID), []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, RoleVisibleKey(premium), []byte("[]"), time.Minute))
	require.NoError(t, c.Set(ctx, RoleChannelKey(free, channelID), []byte("0"), time.Minute))

	err := c.DeleteByPrefix(ctx, RolePrefix(premium))
	require.NoError(t, err)

	_, err = c.Get(ctx, RoleChannelKey(premium, channelID))
	assert.True(t, IsCacheMiss(err))
	_, err = c.Get(ctx, RoleVisibleKey(premium))
	assert.True(t, IsCacheMiss(err))

	// Only the other role's key survives in Redis.
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "tradefloor:"+RoleChannelKey(free, channelID), keys[0])
}

func TestRedisCache_Exists(t *testing.T) {
	c, _ := setupRedisCache(t)
	ctx := context.Background()

	exists, err := c.Exists(ctx, "decision")
	require.NoError(t, err)
	assert.False(t, exists)

	err = c.Set(ctx, "decision", []byte("1"), time.Minute)
	require.NoError(t, err)

	exists, err = c.Exists(ctx, "decision")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRedisCache_TTLExpiration(t *testing.T) {
	c, mr := setupRedisCache(t)
	ctx := context.Background()

	err := c.Set(ctx, "decision", []byte("1"), 50*time.Millisecond)
	require.NoError(t, err)

	value, err := c.Get(ctx, "decision")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	mr.FastForward(100 * time.Millisecond)

	_, err = c.Get(ctx, "decision")
	assert.True(t, IsCacheMiss(err))
}

func TestRedisCache_DefaultTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	c := NewRedisCacheWithClient(client, Config{
		DefaultTTL: time.Hour,
		Prefix:     "test:",
	})
	defer c.Close()

	ctx := context.Background()

	err = c.Set(ctx, "decision", []byte("1"), 0)
	require.NoError(t, err)

	assert.Equal(t, time.Hour, mr.TTL("test:decision"))
}

func TestRedisCache_Prefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	c := NewRedisCacheWithClient(client, Config{
		DefaultTTL: time.Minute,
		Prefix:     "tf:",
	})
	defer c.Close()

	ctx := context.Background()

	err = c.Set(ctx, "decision", []byte("1"), time.Minute)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "tf:decision", keys[0])
}
