// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"gicagen-api/internal/domain/entity"
)

// ProjectFilter 项目过滤条件
type ProjectFilter struct {
	Status   entity.ProjectStatus
	FormatID string
	PromptID string
}

// ProjectRepository 项目仓储接口
//
// 实现必须保证"足够原子"的写入：并发读取方永远不会观察到半写状态
type ProjectRepository interface {
	// Create 创建项目
	Create(ctx context.Context, project *entity.Project) error

	// GetByID 根据 ID 获取项目
	GetByID(ctx context.Context, id string) (*entity.Project, error)

	// Update 整体写回项目记录
	Update(ctx context.Context, project *entity.Project) error

	// Delete 删除项目
	Delete(ctx context.Context, id string) error

	// List 获取项目列表（创建时间倒序）
	List(ctx context.Context, filter *ProjectFilter) ([]*entity.Project, error)

	// Mutate 在文件锁内加载-修改-写回，避免编排器与 API 层互相覆盖
	Mutate(ctx context.Context, id string, fn func(p *entity.Project) error) (*entity.Project, error)
}
