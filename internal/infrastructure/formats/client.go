// Package formats 提供上游 GicaTesis 格式目录服务的接入客户端
//
// 目录数据的属主是上游服务，本服务只做只读代理：结果写入 Redis
// 缓存，上游不可用且允许降级时回退到过期副本
package formats

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gicagen-api/internal/config"
	"gicagen-api/internal/domain/entity"
	redisinfra "gicagen-api/internal/infrastructure/persistence/redis"
	apperrors "gicagen-api/pkg/errors"
	"gicagen-api/pkg/logger"
	"gicagen-api/pkg/metrics"
)

var tracer = otel.Tracer("formats")

const (
	versionKey  = "gicagen:formats:version"
	listKeyBase = "gicagen:formats:list"
	etagSuffix  = ":etag"
	staleSuffix = ":stale"

	// 过期副本的保留时长，远大于正常 TTL
	staleTTL = 24 * time.Hour
)

// Filter 格式列表的筛选条件
type Filter struct {
	University   string
	Category     string
	DocumentType string
	Search       string
}

// Client 上游格式目录客户端
type Client struct {
	httpClient *http.Client
	cfg        *config.FormatsConfig
	cache      *redisinfra.Cache
}

// NewClient 创建格式目录客户端
func NewClient(cfg *config.FormatsConfig, cache *redisinfra.Cache) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		cache:      cache,
	}
}

// GetVersion 获取目录版本，版本变化时使本地缓存失效
func (c *Client) GetVersion(ctx context.Context) (*entity.FormatsVersion, error) {
	ctx, span := tracer.Start(ctx, "formats.GetVersion")
	defer span.End()

	body, _, err := c.doGet(ctx, "version", "/api/v1/formats/version", "")
	if err != nil {
		return nil, err
	}

	var ver entity.FormatsVersion
	if uerr := json.Unmarshal(body, &ver); uerr != nil {
		return nil, apperrors.ErrUpstreamUnavailable.WithDetail("invalid version payload").WithError(uerr)
	}

	prev, gerr := c.cache.Get(ctx, versionKey)
	if gerr == nil && string(prev) != "" {
		var cached entity.FormatsVersion
		if json.Unmarshal(prev, &cached) == nil && cached.Version != ver.Version {
			ver.Changed = true
			if ierr := c.cache.InvalidateFormats(ctx); ierr != nil {
				logger.Warn(ctx, "failed to invalidate formats cache", "error", ierr)
			}
		}
	}
	if serr := c.cache.Set(ctx, versionKey, ver, staleTTL); serr != nil {
		logger.Warn(ctx, "failed to cache formats version", "error", serr)
	}

	span.SetAttributes(attribute.String("formats.version", ver.Version),
		attribute.Bool("formats.changed", ver.Changed))
	return &ver, nil
}

// List 获取格式列表，优先走缓存，上游故障时按配置回退过期副本
func (c *Client) List(ctx context.Context, filter Filter) (*entity.FormatList, error) {
	ctx, span := tracer.Start(ctx, "formats.List")
	defer span.End()

	key := listKey(filter)
	path := "/api/v1/formats" + filter.query()

	// 新鲜缓存命中
	if cached, err := c.cache.Get(ctx, key); err == nil {
		var list entity.FormatList
		if json.Unmarshal(cached, &list) == nil {
			return &list, nil
		}
	}

	etag := ""
	if raw, err := c.cache.Get(ctx, key+etagSuffix); err == nil {
		etag = string(raw)
	}

	body, resp, err := c.doGet(ctx, "list", path, etag)
	if err != nil {
		return c.listStaleFallback(ctx, key, err)
	}

	if resp.StatusCode == http.StatusNotModified {
		// 上游确认未变化，把过期副本提升回新鲜缓存
		metrics.UpstreamRequestsTotal.WithLabelValues("list", "not_modified").Inc()
		if staleRaw, serr := c.cache.Get(ctx, key+staleSuffix); serr == nil {
			var list entity.FormatList
			if json.Unmarshal(staleRaw, &list) == nil {
				list.Stale = false
				c.storeList(ctx, key, resp.Header.Get("ETag"), &list)
				return &list, nil
			}
		}
		// 没有副本可提升，退化为无条件请求
		body, resp, err = c.doGet(ctx, "list", path, "")
		if err != nil {
			return c.listStaleFallback(ctx, key, err)
		}
	}

	summaries, uerr := decodeSummaries(body)
	if uerr != nil {
		return nil, apperrors.ErrUpstreamUnavailable.WithDetail("invalid formats payload").WithError(uerr)
	}

	list := &entity.FormatList{
		Formats:  summaries,
		Stale:    false,
		CachedAt: time.Now().UTC().Format(time.RFC3339),
	}
	c.storeList(ctx, key, resp.Header.Get("ETag"), list)
	return list, nil
}

// GetDetail 获取单个格式的完整定义
func (c *Client) GetDetail(ctx context.Context, formatID string) (*entity.FormatDetail, error) {
	ctx, span := tracer.Start(ctx, "formats.GetDetail",
		trace.WithAttributes(attribute.String("format.id", formatID)))
	defer span.End()

	key := "gicagen:formats:def:" + formatID

	cached, err := c.cache.GetOrLoadSafe(ctx, key, c.cfg.CacheTTL, func() (interface{}, error) {
		body, _, derr := c.doGet(ctx, "detail", "/api/v1/formats/"+url.PathEscape(formatID), "")
		if derr != nil {
			return nil, derr
		}
		var detail entity.FormatDetail
		if uerr := json.Unmarshal(body, &detail); uerr != nil {
			return nil, apperrors.ErrUpstreamUnavailable.WithDetail("invalid format detail payload").WithError(uerr)
		}
		if detail.ID == "" {
			detail.ID = formatID
		}
		return &detail, nil
	})
	if err != nil {
		// 详情也允许降级到过期副本
		if c.cfg.StaleAllowed {
			if staleRaw, serr := c.cache.Get(ctx, key+staleSuffix); serr == nil {
				var detail entity.FormatDetail
				if json.Unmarshal(staleRaw, &detail) == nil {
					metrics.UpstreamRequestsTotal.WithLabelValues("detail", "stale").Inc()
					logger.Warn(ctx, "serving stale format detail", "format_id", formatID)
					return &detail, nil
				}
			}
		}
		return nil, err
	}

	var detail entity.FormatDetail
	if uerr := json.Unmarshal(cached, &detail); uerr != nil {
		return nil, apperrors.ErrCacheError.WithError(uerr)
	}
	// 同步保留一份长期副本用于降级
	if serr := c.cache.SetBytes(ctx, key+staleSuffix, cached, staleTTL); serr != nil {
		logger.Warn(ctx, "failed to store stale format detail", "format_id", formatID, "error", serr)
	}
	return &detail, nil
}

// GetDefinition 获取格式的结构定义，供生成编排器编译大纲
func (c *Client) GetDefinition(ctx context.Context, formatID string) (entity.FormatDefinition, error) {
	detail, err := c.GetDetail(ctx, formatID)
	if err != nil {
		return nil, err
	}
	if len(detail.Definition) == 0 {
		return nil, apperrors.ErrFormatNotFound.WithDetail("format has no definition: " + formatID)
	}
	return detail.Definition, nil
}

// listStaleFallback 上游不可用时尝试返回过期副本
func (c *Client) listStaleFallback(ctx context.Context, key string, cause error) (*entity.FormatList, error) {
	if !c.cfg.StaleAllowed {
		return nil, cause
	}
	staleRaw, serr := c.cache.Get(ctx, key+staleSuffix)
	if serr != nil {
		return nil, cause
	}
	var list entity.FormatList
	if json.Unmarshal(staleRaw, &list) != nil {
		return nil, cause
	}
	list.Stale = true
	metrics.UpstreamRequestsTotal.WithLabelValues("list", "stale").Inc()
	logger.Warn(ctx, "serving stale formats list", "error", cause)
	return &list, nil
}

// storeList 写入新鲜缓存、过期副本与 ETag
func (c *Client) storeList(ctx context.Context, key, etag string, list *entity.FormatList) {
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	if serr := c.cache.SetBytes(ctx, key, raw, c.cfg.CacheTTL); serr != nil {
		logger.Warn(ctx, "failed to cache formats list", "error", serr)
	}
	if serr := c.cache.SetBytes(ctx, key+staleSuffix, raw, staleTTL); serr != nil {
		logger.Warn(ctx, "failed to store stale formats list", "error", serr)
	}
	if etag != "" {
		if serr := c.cache.SetBytes(ctx, key+etagSuffix, []byte(etag), staleTTL); serr != nil {
			logger.Warn(ctx, "failed to cache formats etag", "error", serr)
		}
	}
}

// doGet 执行一次上游 GET，映射错误并记录指标
func (c *Client) doGet(ctx context.Context, operation, path, etag string) ([]byte, *http.Response, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, nil, apperrors.ErrUpstreamUnavailable.WithError(err)
	}
	req.Header.Set("Accept", "application/json")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(operation, "error").Inc()
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, nil, apperrors.ErrUpstreamTimeout.WithError(err)
		}
		return nil, nil, apperrors.ErrUpstreamUnavailable.WithError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, nil, apperrors.ErrUpstreamUnavailable.WithError(err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.UpstreamRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, nil, apperrors.ErrFormatNotFound
	case resp.StatusCode == http.StatusGatewayTimeout:
		metrics.UpstreamRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, nil, apperrors.ErrUpstreamTimeout.WithDetail(fmt.Sprintf("upstream status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		metrics.UpstreamRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, nil, apperrors.ErrUpstreamUnavailable.WithDetail(fmt.Sprintf("upstream status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		metrics.UpstreamRequestsTotal.WithLabelValues(operation, "error").Inc()
		return nil, nil, apperrors.ErrUpstreamUnavailable.WithDetail(
			fmt.Sprintf("upstream status %d: %s", resp.StatusCode, truncate(string(bytes.TrimSpace(body)), 200)))
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(operation, "ok").Inc()
	return body, resp, nil
}

// decodeSummaries 兼容裸数组与包裹对象两种上游响应形态
func decodeSummaries(body []byte) ([]entity.FormatSummary, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var summaries []entity.FormatSummary
		if err := json.Unmarshal(trimmed, &summaries); err != nil {
			return nil, err
		}
		return summaries, nil
	}
	var wrapped struct {
		Formats []entity.FormatSummary `json:"formats"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Formats, nil
}

// listKey 由筛选条件派生稳定的缓存键
func listKey(filter Filter) string {
	parts := []string{
		"university=" + filter.University,
		"category=" + filter.Category,
		"document_type=" + filter.DocumentType,
		"search=" + filter.Search,
	}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "&")))
	return listKeyBase + ":" + hex.EncodeToString(sum[:8])
}

// query 将筛选条件编码为上游查询串
func (f Filter) query() string {
	values := url.Values{}
	if f.University != "" {
		values.Set("university", f.University)
	}
	if f.Category != "" {
		values.Set("category", f.Category)
	}
	if f.DocumentType != "" {
		values.Set("document_type", f.DocumentType)
	}
	if f.Search != "" {
		values.Set("search", f.Search)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func isTimeout(err error) bool {
	var nerr interface{ Timeout() bool }
	return errors.As(err, &nerr) && nerr.Timeout()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
