// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"gicagen-api/internal/domain/entity"
)

// TraceEventResponse 生成运行诊断事件
type TraceEventResponse struct {
	TS      string            `json:"ts"`
	Step    string            `json:"step"`
	Status  string            `json:"status"`
	Title   string            `json:"title"`
	Detail  string            `json:"detail,omitempty"`
	Meta    map[string]any    `json:"meta,omitempty"`
	Preview map[string]string `json:"preview,omitempty"`
}

// ProjectEventsResponse 项目事件快照
type ProjectEventsResponse struct {
	ProjectID string               `json:"projectId"`
	RunID     string               `json:"runId,omitempty"`
	Status    string               `json:"status"`
	Progress  ProgressResponse     `json:"progress"`
	Events    []TraceEventResponse `json:"events"`
}

// ToTraceEventResponse 转换为事件响应
func ToTraceEventResponse(ev entity.TraceEvent) TraceEventResponse {
	return TraceEventResponse{
		TS:      ev.TS.UTC().Format(time.RFC3339Nano),
		Step:    ev.Step,
		Status:  string(ev.Status),
		Title:   ev.Title,
		Detail:  ev.Detail,
		Meta:    ev.Meta,
		Preview: ev.Preview,
	}
}

// ToProjectEventsResponse 转换为事件快照响应
func ToProjectEventsResponse(p *entity.Project) *ProjectEventsResponse {
	events := make([]TraceEventResponse, 0, len(p.Events))
	for _, ev := range p.Events {
		events = append(events, ToTraceEventResponse(ev))
	}
	return &ProjectEventsResponse{
		ProjectID: p.ID,
		RunID:     p.RunID,
		Status:    string(p.Status),
		Progress:  toProgressResponse(p.Progress),
		Events:    events,
	}
}
