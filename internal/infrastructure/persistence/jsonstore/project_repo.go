// Package jsonstore 提供基于平面 JSON 文件的集合存储
package jsonstore

import (
	"context"
	"path/filepath"
	"sort"

	"gicagen-api/internal/config"
	"gicagen-api/internal/domain/entity"
	"gicagen-api/internal/domain/repository"
	apperrors "gicagen-api/pkg/errors"
)

// ProjectRepo 项目仓储的平面文件实现
type ProjectRepo struct {
	col *Collection[*entity.Project]
}

// NewProjectRepo 创建项目仓储
func NewProjectRepo(cfg *config.StorageConfig) *ProjectRepo {
	path := filepath.Join(cfg.DataDir, cfg.ProjectFile)
	return &ProjectRepo{col: NewCollection[*entity.Project](path)}
}

// Create 创建项目
func (r *ProjectRepo) Create(ctx context.Context, project *entity.Project) error {
	_, err := r.col.Update(ctx, func(items []*entity.Project) ([]*entity.Project, error) {
		for _, p := range items {
			if p.ID == project.ID {
				return nil, apperrors.ErrConflict.WithDetail("project id already exists: " + project.ID)
			}
		}
		return append(items, project), nil
	})
	return err
}

// GetByID 根据 ID 获取项目
func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	items, err := r.col.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range items {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperrors.ErrProjectNotFound.WithDetail(id)
}

// Update 整体写回项目记录
func (r *ProjectRepo) Update(ctx context.Context, project *entity.Project) error {
	_, err := r.Mutate(ctx, project.ID, func(p *entity.Project) error {
		*p = *project
		return nil
	})
	return err
}

// Delete 删除项目
func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	found := false
	_, err := r.col.Update(ctx, func(items []*entity.Project) ([]*entity.Project, error) {
		out := items[:0]
		for _, p := range items {
			if p.ID == id {
				found = true
				continue
			}
			out = append(out, p)
		}
		return out, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return apperrors.ErrProjectNotFound.WithDetail(id)
	}
	return nil
}

// List 获取项目列表（创建时间倒序）
func (r *ProjectRepo) List(ctx context.Context, filter *repository.ProjectFilter) ([]*entity.Project, error) {
	items, err := r.col.Load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*entity.Project, 0, len(items))
	for _, p := range items {
		if filter != nil {
			if filter.Status != "" && p.Status != filter.Status {
				continue
			}
			if filter.FormatID != "" && p.FormatID != filter.FormatID {
				continue
			}
			if filter.PromptID != "" && p.PromptID != filter.PromptID {
				continue
			}
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Mutate 在文件锁内加载-修改-写回，返回修改后的记录
func (r *ProjectRepo) Mutate(ctx context.Context, id string, fn func(p *entity.Project) error) (*entity.Project, error) {
	var result *entity.Project
	_, err := r.col.Update(ctx, func(items []*entity.Project) ([]*entity.Project, error) {
		for _, p := range items {
			if p.ID == id {
				if err := fn(p); err != nil {
					return nil, err
				}
				result = p
				return items, nil
			}
		}
		return nil, apperrors.ErrProjectNotFound.WithDetail(id)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
