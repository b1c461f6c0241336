// Package webhook 提供向渲染导出服务推送完成项目的客户端
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gicagen-api/internal/config"
	"gicagen-api/internal/domain/entity"
	apperrors "gicagen-api/pkg/errors"
	"gicagen-api/pkg/logger"
)

var tracer = otel.Tracer("webhook")

// SecretHeader 共享密钥请求头，渲染服务以同名头回调本服务
const SecretHeader = "X-GICAGEN-SECRET"

// renderPayload 推送给渲染服务的项目快照
type renderPayload struct {
	ProjectID string               `json:"projectId"`
	Title     string               `json:"title"`
	FormatID  string               `json:"formatId"`
	PromptID  string               `json:"promptId,omitempty"`
	Values    map[string]string    `json:"values,omitempty"`
	AIResult  *entity.AIResult     `json:"aiResult"`
	Status    entity.ProjectStatus `json:"status"`
	Sections  int                  `json:"sections"`
}

// Client 渲染导出 webhook 客户端
type Client struct {
	httpClient *http.Client
	cfg        *config.WebhookConfig
}

// NewClient 创建 webhook 客户端
func NewClient(cfg *config.WebhookConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
	}
}

// Enabled 是否配置了渲染服务地址
func (c *Client) Enabled() bool {
	return c.cfg.URL != ""
}

// TriggerRender 将完成的项目推送给渲染服务生成 DOCX/PDF
func (c *Client) TriggerRender(ctx context.Context, project *entity.Project) error {
	if !c.Enabled() {
		logger.Debug(ctx, "render webhook not configured, skipping", "project_id", project.ID)
		return nil
	}

	ctx, span := tracer.Start(ctx, "webhook.TriggerRender",
		trace.WithAttributes(attribute.String("project.id", project.ID)))
	defer span.End()

	sections := 0
	if project.AIResult != nil {
		sections = len(project.AIResult.Sections)
	}
	payload := renderPayload{
		ProjectID: project.ID,
		Title:     project.Title,
		FormatID:  project.FormatID,
		PromptID:  project.PromptID,
		Values:    project.Values,
		AIResult:  project.AIResult,
		Status:    project.Status,
		Sections:  sections,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal render payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Secret != "" {
		req.Header.Set(SecretHeader, c.cfg.Secret)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return apperrors.New(apperrors.CodeWebhookRejected, "render webhook unreachable").WithError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	span.SetAttributes(
		attribute.Int("webhook.status_code", resp.StatusCode),
		attribute.Int64("webhook.duration_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.New(apperrors.CodeWebhookRejected,
			fmt.Sprintf("render webhook rejected with status %d", resp.StatusCode))
	}

	logger.Info(ctx, "render webhook triggered",
		"project_id", project.ID, "status_code", resp.StatusCode, "sections", sections)
	return nil
}

// VerifySecret 校验回调请求携带的共享密钥
func (c *Client) VerifySecret(got string) bool {
	return c.cfg.Secret == "" || got == c.cfg.Secret
}
