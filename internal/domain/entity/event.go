// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// EventStatus 事件状态
type EventStatus string

const (
	EventStatusRunning EventStatus = "running"
	EventStatusDone    EventStatus = "done"
	EventStatusError   EventStatus = "error"
	EventStatusWarn    EventStatus = "warn"
)

// 生成运行的阶段标识（点分命名）
const (
	StepGenerateStart      = "ai.generate.start"
	StepPromptRender       = "prompt.render"
	StepFormatSectionIndex = "format.section_index"
	StepGenerateSection    = "ai.generate.section"
	StepProviderFallback   = "ai.provider.fallback"
	StepProviderQuota      = "ai.provider.quota"
	StepProviderDegraded   = "ai.provider.degraded"
	StepValidation         = "ai.validation"
	StepGenerateDone       = "ai.generate.done"
	StepWebhookTrigger     = "webhook.trigger"
)

// PreviewLimit 事件 preview 片段的最大 rune 数
const PreviewLimit = 480

// TraceEvent 生成运行过程中的诊断事件
// 仅在单次运行内追加，整体受 Project 的环形缓冲约束
type TraceEvent struct {
	TS      time.Time         `json:"ts"`
	Step    string            `json:"step"`
	Status  EventStatus       `json:"status"`
	Title   string            `json:"title"`
	Detail  string            `json:"detail,omitempty"`
	Meta    map[string]any    `json:"meta,omitempty"`
	Preview map[string]string `json:"preview,omitempty"`
}

// NewTraceEvent 创建事件
func NewTraceEvent(step string, status EventStatus, title string) TraceEvent {
	return TraceEvent{
		TS:     time.Now(),
		Step:   step,
		Status: status,
		Title:  title,
	}
}

// WithDetail 设置详情
func (e TraceEvent) WithDetail(detail string) TraceEvent {
	e.Detail = detail
	return e
}

// WithMeta 设置元信息
func (e TraceEvent) WithMeta(meta map[string]any) TraceEvent {
	e.Meta = meta
	return e
}

// WithPreview 设置调试片段，超长截断、敏感键脱敏后存储
func (e TraceEvent) WithPreview(preview map[string]string) TraceEvent {
	if len(preview) == 0 {
		return e
	}
	out := make(map[string]string, len(preview))
	for k, v := range preview {
		if isSecretKey(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = ClipPreview(v, PreviewLimit)
	}
	e.Preview = out
	return e
}

// ClipPreview 按 rune 截断预览文本
func ClipPreview(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

// isSecretKey 判断 preview 键是否携带敏感信息
func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, marker := range []string{"key", "secret", "token", "password", "authorization"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}
