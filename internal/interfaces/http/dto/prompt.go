// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"gicagen-api/internal/domain/entity"
)

// CreatePromptRequest 创建提示词模板请求
type CreatePromptRequest struct {
	Name      string   `json:"name" binding:"required,max=255"`
	DocType   string   `json:"docType"`
	Template  string   `json:"template" binding:"required"`
	Variables []string `json:"variables"`
}

// ToPromptEntity 转换为领域实体
func (r *CreatePromptRequest) ToPromptEntity() *entity.Prompt {
	return entity.NewPrompt(r.Name, r.DocType, r.Template, r.Variables)
}

// UpdatePromptRequest 更新提示词模板请求，空字段保持原值
type UpdatePromptRequest struct {
	Name      *string   `json:"name"`
	DocType   *string   `json:"docType"`
	Template  *string   `json:"template"`
	Variables *[]string `json:"variables"`
	IsActive  *bool     `json:"isActive"`
}

// ApplyToPrompt 把更新内容套用到实体
func (r *UpdatePromptRequest) ApplyToPrompt(p *entity.Prompt) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.DocType != nil {
		p.DocType = *r.DocType
	}
	if r.Template != nil {
		p.Template = *r.Template
	}
	if r.Variables != nil {
		p.Variables = *r.Variables
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	p.UpdatedAt = time.Now()
}

// PromptResponse 提示词模板响应
type PromptResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	DocType   string   `json:"docType,omitempty"`
	IsActive  bool     `json:"isActive"`
	Template  string   `json:"template"`
	Variables []string `json:"variables,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// PromptListResponse 提示词模板列表
type PromptListResponse struct {
	Prompts []*PromptResponse `json:"prompts"`
}

// ToPromptResponse 转换为响应
func ToPromptResponse(p *entity.Prompt) *PromptResponse {
	return &PromptResponse{
		ID:        p.ID,
		Name:      p.Name,
		DocType:   p.DocType,
		IsActive:  p.IsActive,
		Template:  p.Template,
		Variables: p.Variables,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ToPromptListResponse 转换为列表响应
func ToPromptListResponse(items []*entity.Prompt) *PromptListResponse {
	out := make([]*PromptResponse, 0, len(items))
	for _, p := range items {
		out = append(out, ToPromptResponse(p))
	}
	return &PromptListResponse{Prompts: out}
}
