package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	p, err := New(Config{
		Client:      goredis.NewClient(&goredis.Options{Addr: mr.Addr()}),
		CloseClient: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p, mr
}

func TestRedisProvider(t *testing.T) {
	ctx := context.Background()
	p, mr := newTestProvider(t)

	_, ok, err := p.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	val := []byte{0x00, 0xff, 0x10, 'x'}
	ok, err = p.Set(ctx, "k", val, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	got, ok, err := p.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, val, got)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	ttl, err := p.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(2 * time.Minute)
	_, ok, err = p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Set(ctx, "forever", val, 1, -1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), mr.TTL("forever"))

	require.NoError(t, p.Del(ctx, "forever"))
	assert.False(t, mr.Exists("forever"))
	require.NoError(t, p.Ping(ctx))
}

func TestRedisProviderErrors(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNilClient)

	ctx := context.Background()
	p, mr := newTestProvider(t)
	mr.Close()

	_, _, err = p.Get(ctx, "k")
	assert.Error(t, err)
	_, err = p.Set(ctx, "k", []byte("v"), 1, 0)
	assert.Error(t, err)
	assert.Error(t, p.Ping(ctx))

	require.NoError(t, p.Close(ctx))
	require.NoError(t, p.Close(ctx))
}
