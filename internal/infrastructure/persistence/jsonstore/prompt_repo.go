// Package jsonstore 提供基于平面 JSON 文件的集合存储
package jsonstore

import (
	"context"
	"path/filepath"
	"sort"

	"gicagen-api/internal/config"
	"gicagen-api/internal/domain/entity"
	apperrors "gicagen-api/pkg/errors"
)

// PromptRepo 提示词模板仓储的平面文件实现
type PromptRepo struct {
	col *Collection[*entity.Prompt]
}

// NewPromptRepo 创建提示词模板仓储
func NewPromptRepo(cfg *config.StorageConfig) *PromptRepo {
	path := filepath.Join(cfg.DataDir, cfg.PromptFile)
	return &PromptRepo{col: NewCollection[*entity.Prompt](path)}
}

// Create 创建模板
func (r *PromptRepo) Create(ctx context.Context, prompt *entity.Prompt) error {
	_, err := r.col.Update(ctx, func(items []*entity.Prompt) ([]*entity.Prompt, error) {
		for _, p := range items {
			if p.ID == prompt.ID {
				return nil, apperrors.ErrConflict.WithDetail("prompt id already exists: " + prompt.ID)
			}
		}
		return append(items, prompt), nil
	})
	return err
}

// GetByID 根据 ID 获取模板
func (r *PromptRepo) GetByID(ctx context.Context, id string) (*entity.Prompt, error) {
	items, err := r.col.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range items {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, apperrors.ErrPromptNotFound.WithDetail(id)
}

// Update 更新模板
func (r *PromptRepo) Update(ctx context.Context, prompt *entity.Prompt) error {
	_, err := r.col.Update(ctx, func(items []*entity.Prompt) ([]*entity.Prompt, error) {
		for i, p := range items {
			if p.ID == prompt.ID {
				items[i] = prompt
				return items, nil
			}
		}
		return nil, apperrors.ErrPromptNotFound.WithDetail(prompt.ID)
	})
	return err
}

// Delete 删除模板
func (r *PromptRepo) Delete(ctx context.Context, id string) error {
	found := false
	_, err := r.col.Update(ctx, func(items []*entity.Prompt) ([]*entity.Prompt, error) {
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
		return apperrors.ErrPromptNotFound.WithDetail(id)
	}
	return nil
}

// List 获取全部模板（创建时间倒序）
func (r *PromptRepo) List(ctx context.Context) ([]*entity.Prompt, error) {
	items, err := r.col.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := append([]*entity.Prompt(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
