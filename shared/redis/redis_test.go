package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eaglebank/identity-service/shared/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func testConfig(addr string) config.Redis {
	return config.Redis{
		Addr:         addr,
		PoolSize:     7,
		DialTimeout:  time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(mr.Addr())
	cfg.DB = 2
	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())

	opts := client.Options()
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Equal(t, 3*time.Second, opts.WriteTimeout)
}

func TestNewClient_Password(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	_, err := NewClient(context.Background(), testConfig(mr.Addr()))
	assert.Error(t, err)

	cfg := testConfig(mr.Addr())
	cfg.Password = "s3cret"
	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	_ = client.Close()
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), testConfig(addr))
	assert.Error(t, err)
}

func TestViewCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), testConfig(mr.Addr()))
	require.NoError(t, err)
	defer client.Close()

	cache := NewViewCache[testView](client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "view:1", &testView{ID: "1", Name: "alice"}))
	assert.Equal(t, time.Minute, mr.TTL("view:1"))

	raw, err := mr.Get("view:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","name":"alice"}`, raw)

	require.NoError(t, cache.Delete(ctx, "view:1"))
	assert.False(t, mr.Exists("view:1"))
}

func TestViewCache_NoExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), testConfig(mr.Addr()))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, NewViewCache[testView](client, 0).Set(context.Background(), "view:2", &testView{ID: "2"}))
	assert.Equal(t, time.Duration(0), mr.TTL("view:2"))
}

func TestViewCache_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), testConfig(mr.Addr()))
	require.NoError(t, err)
	defer client.Close()
	mr.Close()

	cache := NewViewCache[testView](client, time.Minute)
	assert.Error(t, cache.Set(context.Background(), "view:1", &testView{ID: "1"}))
	assert.Error(t, cache.Delete(context.Background(), "view:1"))
}
