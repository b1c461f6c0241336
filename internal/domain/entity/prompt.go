// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Prompt 提示词模板
type Prompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	DocType   string    `json:"doc_type"`
	IsActive  bool      `json:"is_active"`
	Template  string    `json:"template"`
	Variables []string  `json:"variables,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPrompt 创建提示词模板
func NewPrompt(name, docType, template string, variables []string) *Prompt {
	now := time.Now()
	return &Prompt{
		ID:        "prompt_" + uuid.NewString(),
		Name:      name,
		DocType:   docType,
		IsActive:  true,
		Template:  template,
		Variables: variables,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
