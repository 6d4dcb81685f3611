package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), "redis://"+mr.Addr()+"/0", "linkdesk", time.Minute, zerolog.New(nil).Level(zerolog.Disabled))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return mr, store
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	mr, store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "i18n:fr", `{"Country":"Pays"}`, 0))

	// Keys are namespaced and get the default ttl
	assert.True(t, mr.Exists("linkdesk:i18n:fr"))
	assert.Equal(t, time.Minute, mr.TTL("linkdesk:i18n:fr"))

	val, err := store.Get(ctx, "i18n:fr")
	require.NoError(t, err)
	assert.Equal(t, `{"Country":"Pays"}`, val)

	require.NoError(t, store.Delete(ctx, "i18n:fr"))
	_, err = store.Get(ctx, "i18n:fr")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_Expiry(t *testing.T) {
	mr, store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", "v", 10*time.Second))
	mr.FastForward(11 * time.Second)

	_, err := store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_Closed(t *testing.T) {
	_, store := setupTestRedis(t)
	require.NoError(t, store.Close())

	_, err := store.Get(context.Background(), "k")
	assert.EqualError(t, err, "cache is closed")
	assert.NoError(t, store.Close())
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), "redis://"+addr, "", time.Minute, zerolog.New(nil))
	assert.ErrorContains(t, err, "failed to connect to redis")

	_, err = NewRedisStore(context.Background(), "http://nope", "", time.Minute, zerolog.New(nil))
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Set(ctx, "a", "1", 0))
	require.NoError(t, store.Set(ctx, "b", "2", -1))

	val, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	clock = clock.Add(2 * time.Minute)
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Negative ttl never expires
	val, err = store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", val)

	require.NoError(t, store.Delete(ctx, "b", "missing"))
	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	stores := map[string]Store{"memory": NewMemoryStore(0)}
	_, redisStore := setupTestRedis(t)
	stores["redis"] = redisStore

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			in := map[string]string{"Country": "Pays"}
			require.NoError(t, SetJSON(ctx, store, "dict", in, 0))

			var out map[string]string
			require.NoError(t, GetJSON(ctx, store, "dict", &out))
			assert.Equal(t, in, out)

			require.NoError(t, store.Set(ctx, "broken", "{", 0))
			assert.ErrorContains(t, GetJSON(ctx, store, "broken", &out), "failed to unmarshal")

			assert.ErrorIs(t, GetJSON(ctx, store, "absent", &out), ErrCacheMiss)
		})
	}
}
