// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"gicagen-api/internal/domain/entity"
)

// PromptRepository 提示词模板仓储接口
type PromptRepository interface {
	// Create 创建模板
	Create(ctx context.Context, prompt *entity.Prompt) error

	// GetByID 根据 ID 获取模板
	GetByID(ctx context.Context, id string) (*entity.Prompt, error)

	// Update 更新模板
	Update(ctx context.Context, prompt *entity.Prompt) error

	// Delete 删除模板
	Delete(ctx context.Context, id string) error

	// List 获取全部模板（创建时间倒序）
	List(ctx context.Context) ([]*entity.Prompt, error)
}
