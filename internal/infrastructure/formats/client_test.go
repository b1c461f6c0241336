package formats

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gicagen-api/internal/config"
	redisinfra "gicagen-api/internal/infrastructure/persistence/redis"
	apperrors "gicagen-api/pkg/errors"
)

func newTestCache(t *testing.T) (*redisinfra.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := redisinfra.NewClient(&config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return redisinfra.NewCache(client), mr
}

func newTestClient(t *testing.T, baseURL string, staleAllowed bool) (*Client, *miniredis.Miniredis) {
	t.Helper()
	cache, mr := newTestCache(t)
	return NewClient(&config.FormatsConfig{
		BaseURL:      baseURL,
		Timeout:      2 * time.Second,
		CacheTTL:     time.Minute,
		StaleAllowed: staleAllowed,
	}, cache), mr
}

// freshListKey 找出不带后缀的列表缓存键
func freshListKey(t *testing.T, mr *miniredis.Miniredis) string {
	t.Helper()
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "gicagen:formats:list:") &&
			!strings.HasSuffix(k, ":stale") && !strings.HasSuffix(k, ":etag") {
			return k
		}
	}
	t.Fatal("fresh list key not found")
	return ""
}

func TestClient_List_CachesUpstreamResponse(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("ETag", `"v1"`)
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"id": "fmt_unap", "name": "UNAP Tesis"},
			{"id": "fmt_una", "name": "UNA Puno Tesis"},
		})
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, true)
	ctx := context.Background()

	first, err := client.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, first.Formats, 2)
	assert.False(t, first.Stale)
	assert.Equal(t, "fmt_unap", first.Formats[0].ID)

	second, err := client.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, second.Formats, 2)

	// 第二次命中缓存，不再访问上游
	assert.Equal(t, int64(1), hits.Load())
}

func TestClient_List_WrappedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"formats":[{"id":"fmt_unap","name":"UNAP"}]}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, true)

	list, err := client.List(context.Background(), Filter{University: "unap"})
	require.NoError(t, err)
	require.Len(t, list.Formats, 1)
	assert.Equal(t, "fmt_unap", list.Formats[0].ID)
}

func TestClient_List_StaleFallbackOnUpstreamFailure(t *testing.T) {
	healthy := atomic.Bool{}
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]string{{"id": "fmt_unap", "name": "UNAP"}})
	}))
	defer srv.Close()

	client, mr := newTestClient(t, srv.URL, true)
	ctx := context.Background()

	_, err := client.List(ctx, Filter{})
	require.NoError(t, err)

	// 新鲜缓存过期、上游故障，只剩过期副本
	key := freshListKey(t, mr)
	mr.Del(key)
	mr.Del(key + ":etag")
	healthy.Store(false)

	list, err := client.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, list.Formats, 1)
	assert.True(t, list.Stale)
}

func TestClient_List_StaleDisallowedPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, false)

	_, err := client.List(context.Background(), Filter{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUpstreamUnavailable, apperrors.AsAppError(err).Code)
}

func TestClient_List_NotModifiedPromotesStaleCopy(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_ = json.NewEncoder(w).Encode([]map[string]string{{"id": "fmt_unap", "name": "UNAP"}})
	}))
	defer srv.Close()

	client, mr := newTestClient(t, srv.URL, true)
	ctx := context.Background()

	_, err := client.List(ctx, Filter{})
	require.NoError(t, err)

	// 新鲜缓存过期，ETag 与过期副本仍在
	mr.Del(freshListKey(t, mr))

	list, err := client.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, list.Formats, 1)
	assert.False(t, list.Stale)
	assert.Equal(t, int64(2), hits.Load())

	// 过期副本被提升回新鲜缓存，下次直接命中
	_, err = client.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestClient_GetDetail_CachesAndKeepsStaleCopy(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{
			"id": "fmt_unap",
			"name": "UNAP Tesis",
			"definition": {"cuerpo": {"capitulos": [{"titulo": "I. Uno"}]}}
		}`))
	}))
	defer srv.Close()

	client, mr := newTestClient(t, srv.URL, true)
	ctx := context.Background()

	detail, err := client.GetDetail(ctx, "fmt_unap")
	require.NoError(t, err)
	assert.Equal(t, "fmt_unap", detail.ID)
	assert.NotEmpty(t, detail.Definition)

	_, err = client.GetDetail(ctx, "fmt_unap")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())

	// 缓存清空且上游故障时用长期副本降级
	mr.Del("gicagen:formats:def:fmt_unap")
	srv.Close()

	detail, err = client.GetDetail(ctx, "fmt_unap")
	require.NoError(t, err)
	assert.Equal(t, "fmt_unap", detail.ID)
}

func TestClient_GetDetail_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, false)

	_, err := client.GetDetail(context.Background(), "fmt_missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeFormatNotFound, apperrors.AsAppError(err).Code)
}

func TestClient_GetDefinition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/fmt_vacio") {
			_, _ = w.Write([]byte(`{"id": "fmt_vacio", "name": "Sin estructura"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": "fmt_unap", "definition": {"cuerpo": {"cap": "Contenido"}}}`))
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, false)
	ctx := context.Background()

	def, err := client.GetDefinition(ctx, "fmt_unap")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cuerpo": {"cap": "Contenido"}}`, string(def))

	_, err = client.GetDefinition(ctx, "fmt_vacio")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeFormatNotFound, apperrors.AsAppError(err).Code)
}

func TestClient_GetVersion_DetectsChangeAndInvalidates(t *testing.T) {
	version := atomic.Value{}
	version.Store("2026-01")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/version") {
			_ = json.NewEncoder(w).Encode(map[string]string{"version": version.Load().(string)})
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]string{{"id": "fmt_unap", "name": "UNAP"}})
	}))
	defer srv.Close()

	client, mr := newTestClient(t, srv.URL, true)
	ctx := context.Background()

	ver, err := client.GetVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-01", ver.Version)
	assert.False(t, ver.Changed)

	// 填充列表缓存
	_, err = client.List(ctx, Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, mr.Keys())

	// 上游版本变化：报告 changed 并使格式缓存失效
	version.Store("2026-02")
	ver, err = client.GetVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-02", ver.Version)
	assert.True(t, ver.Changed)

	for _, k := range mr.Keys() {
		assert.False(t, strings.HasPrefix(k, "gicagen:formats:list"), "list cache should be invalidated, found %s", k)
	}
}
