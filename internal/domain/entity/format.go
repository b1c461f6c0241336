// Package entity 定义领域实体
package entity

import "encoding/json"

// FormatDefinition 上游格式目录返回的嵌套文档结构定义
// 只读输入，由外部 formats 服务拥有，本服务从不修改；
// 保留原始 JSON 字节以维持文档顺序
type FormatDefinition = json.RawMessage

// FormatSummary 格式目录摘要（列表视图）
type FormatSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	University   string `json:"university,omitempty"`
	Category     string `json:"category,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	Version      string `json:"version,omitempty"`
	LogoURL      string `json:"logo_url,omitempty"`
}

// FormatDetail 格式完整定义（向导视图）
type FormatDetail struct {
	FormatSummary
	Fields     []FormatField    `json:"fields,omitempty"`
	Definition FormatDefinition `json:"definition,omitempty"`
}

// FormatField 向导中用户需要填写的变量字段
type FormatField struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}

// FormatsVersion 目录版本信息
type FormatsVersion struct {
	Version string `json:"version"`
	Changed bool   `json:"changed"`
}

// FormatList 带缓存状态的格式列表
type FormatList struct {
	Formats  []FormatSummary `json:"formats"`
	Stale    bool            `json:"stale"`
	CachedAt string          `json:"cached_at,omitempty"`
}
