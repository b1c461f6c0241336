package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gicagen-api/internal/config"
)

func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewClient(&config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestCache_SetAndGet(t *testing.T) {
	client, _ := setupTestClient(t)
	cache := NewCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", map[string]string{"a": "b"}, time.Minute))

	val, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"b"}`, string(val))

	_, err = cache.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, goredis.Nil))
}

func TestCache_GetOrLoadSafe(t *testing.T) {
	client, _ := setupTestClient(t)
	cache := NewCache(client)
	ctx := context.Background()

	var loads atomic.Int64
	loader := func() (interface{}, error) {
		loads.Add(1)
		return map[string]string{"id": "fmt_unap"}, nil
	}

	val, err := cache.GetOrLoadSafe(ctx, "def:fmt_unap", time.Minute, loader)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"fmt_unap"}`, string(val))
	assert.Equal(t, int64(1), loads.Load())

	// 第二次直接命中缓存
	_, err = cache.GetOrLoadSafe(ctx, "def:fmt_unap", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loads.Load())
}

func TestCache_GetOrLoadSafe_SingleFlight(t *testing.T) {
	client, _ := setupTestClient(t)
	cache := NewCache(client)
	ctx := context.Background()

	var loads atomic.Int64
	release := make(chan struct{})
	loader := func() (interface{}, error) {
		loads.Add(1)
		<-release
		return "valor", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.GetOrLoadSafe(ctx, "hot-key", time.Minute, loader)
		}()
	}

	// 等待并发请求聚集后再放行加载
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	// singleflight 合并并发加载
	assert.LessOrEqual(t, loads.Load(), int64(2))
}

func TestCache_GetOrLoadSafe_LoaderError(t *testing.T) {
	client, _ := setupTestClient(t)
	cache := NewCache(client)

	wantErr := errors.New("upstream down")
	_, err := cache.GetOrLoadSafe(context.Background(), "bad-key", time.Minute, func() (interface{}, error) {
		return nil, wantErr
	})
	require.Error(t, err)
	assert.Equal(t, wantErr, err)
}

func TestCache_InvalidateFormats(t *testing.T) {
	client, mr := setupTestClient(t)
	cache := NewCache(client)
	ctx := context.Background()

	require.NoError(t, cache.SetBytes(ctx, "gicagen:formats:list:abc", []byte("x"), time.Minute))
	require.NoError(t, cache.SetBytes(ctx, "gicagen:formats:def:fmt_unap", []byte("y"), time.Minute))
	require.NoError(t, cache.SetBytes(ctx, "gicagen:projects:snapshot", []byte("z"), time.Minute))

	require.NoError(t, cache.InvalidateFormats(ctx))

	assert.False(t, mr.Exists("gicagen:formats:list:abc"))
	assert.False(t, mr.Exists("gicagen:formats:def:fmt_unap"))
	assert.True(t, mr.Exists("gicagen:projects:snapshot"))
}

func TestRateLimiter_Allow(t *testing.T) {
	client, _ := setupTestClient(t)
	limiter := NewRateLimiter(client)
	ctx := context.Background()

	key := BuildRateLimitKey("10.0.0.1", "/api/v1/projects")

	allowedCount := 0
	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		if allowed {
			allowedCount++
		}
		// 滑动窗口按毫秒记录成员，保证时间戳不重合
		time.Sleep(2 * time.Millisecond)
	}
	assert.Equal(t, 3, allowedCount)

	remaining, err := limiter.Remaining(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	require.NoError(t, limiter.Reset(ctx, key))
	allowed, err := limiter.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestBuildRateLimitKey(t *testing.T) {
	assert.Equal(t, "gicagen:ratelimit:10.0.0.1:/api/v1/projects",
		BuildRateLimitKey("10.0.0.1", "/api/v1/projects"))
}
