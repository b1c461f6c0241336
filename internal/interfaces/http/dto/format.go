// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"gicagen-api/internal/domain/entity"
)

// FormatSummaryResponse 格式摘要
type FormatSummaryResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	University   string `json:"university,omitempty"`
	Category     string `json:"category,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
	Version      string `json:"version,omitempty"`
	LogoURL      string `json:"logoUrl,omitempty"`
}

// FormatListResponse 格式列表，stale 表示数据来自过期缓存副本
type FormatListResponse struct {
	Formats  []FormatSummaryResponse `json:"formats"`
	Stale    bool                    `json:"stale"`
	CachedAt string                  `json:"cachedAt,omitempty"`
}

// FormatDetailResponse 格式完整定义（向导视图）
type FormatDetailResponse struct {
	FormatSummaryResponse
	Fields     []FormatFieldResponse   `json:"fields,omitempty"`
	Definition entity.FormatDefinition `json:"definition,omitempty"`
}

// FormatFieldResponse 向导中用户需要填写的变量字段
type FormatFieldResponse struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// FormatsVersionResponse 目录版本信息
type FormatsVersionResponse struct {
	Version string `json:"version"`
	Changed bool   `json:"changed"`
}

// ToFormatSummaryResponse 转换为摘要响应
func ToFormatSummaryResponse(f entity.FormatSummary) FormatSummaryResponse {
	return FormatSummaryResponse{
		ID:           f.ID,
		Name:         f.Name,
		University:   f.University,
		Category:     f.Category,
		DocumentType: f.DocumentType,
		Version:      f.Version,
		LogoURL:      f.LogoURL,
	}
}

// ToFormatListResponse 转换为列表响应
func ToFormatListResponse(list *entity.FormatList) *FormatListResponse {
	formats := make([]FormatSummaryResponse, 0, len(list.Formats))
	for _, f := range list.Formats {
		formats = append(formats, ToFormatSummaryResponse(f))
	}
	return &FormatListResponse{
		Formats:  formats,
		Stale:    list.Stale,
		CachedAt: list.CachedAt,
	}
}

// ToFormatDetailResponse 转换为详情响应
func ToFormatDetailResponse(d *entity.FormatDetail) *FormatDetailResponse {
	fields := make([]FormatFieldResponse, 0, len(d.Fields))
	for _, f := range d.Fields {
		fields = append(fields, FormatFieldResponse{
			Key:         f.Key,
			Label:       f.Label,
			Type:        f.Type,
			Required:    f.Required,
			Placeholder: f.Placeholder,
		})
	}
	return &FormatDetailResponse{
		FormatSummaryResponse: ToFormatSummaryResponse(d.FormatSummary),
		Fields:                fields,
		Definition:            d.Definition,
	}
}
