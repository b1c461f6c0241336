package jsonstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gicagen-api/internal/config"
	"gicagen-api/internal/domain/entity"
	"gicagen-api/internal/domain/repository"
	apperrors "gicagen-api/pkg/errors"
)

func newTestProjectRepo(t *testing.T) (*ProjectRepo, string) {
	t.Helper()
	dir := t.TempDir()
	repo := NewProjectRepo(&config.StorageConfig{
		DataDir:     dir,
		ProjectFile: "projects.json",
	})
	return repo, filepath.Join(dir, "projects.json")
}

func TestProjectRepo_CreateAndGet(t *testing.T) {
	repo, _ := newTestProjectRepo(t)
	ctx := context.Background()

	p := entity.NewProject("Tesis UNAP", "fmt_unap", "prompt_1", map[string]string{"tema": "agua"})
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "Tesis UNAP", got.Title)
	assert.Equal(t, entity.ProjectStatusDraft, got.Status)

	// 重复 id 拒绝
	err = repo.Create(ctx, p)
	require.Error(t, err)
	require.True(t, apperrors.IsAppError(err))
	assert.Equal(t, apperrors.CodeConflict, apperrors.AsAppError(err).Code)
}

func TestProjectRepo_GetByID_NotFound(t *testing.T) {
	repo, _ := newTestProjectRepo(t)

	_, err := repo.GetByID(context.Background(), "proj_missing")
	require.Error(t, err)
	require.True(t, apperrors.IsAppError(err))
	assert.Equal(t, apperrors.CodeProjectNotFound, apperrors.AsAppError(err).Code)
}

func TestProjectRepo_Mutate(t *testing.T) {
	repo, _ := newTestProjectRepo(t)
	ctx := context.Background()

	p := entity.NewProject("Tesis", "fmt_unap", "", nil)
	require.NoError(t, repo.Create(ctx, p))

	updated, err := repo.Mutate(ctx, p.ID, func(p *entity.Project) error {
		p.StartRun("run_1", 4)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusGenerating, updated.Status)
	assert.Equal(t, "run_1", updated.RunID)

	// 修改已落盘
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusGenerating, got.Status)

	// 回调报错时不写回
	_, err = repo.Mutate(ctx, p.ID, func(p *entity.Project) error {
		p.Finish(entity.ProjectStatusFailed, "no debe persistirse")
		return assert.AnError
	})
	require.Error(t, err)
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusGenerating, got.Status)
}

func TestProjectRepo_Delete(t *testing.T) {
	repo, _ := newTestProjectRepo(t)
	ctx := context.Background()

	p := entity.NewProject("Tesis", "fmt_unap", "", nil)
	require.NoError(t, repo.Create(ctx, p))
	require.NoError(t, repo.Delete(ctx, p.ID))

	_, err := repo.GetByID(ctx, p.ID)
	require.Error(t, err)

	err = repo.Delete(ctx, p.ID)
	require.Error(t, err)
}

func TestProjectRepo_List_FilterAndOrder(t *testing.T) {
	repo, _ := newTestProjectRepo(t)
	ctx := context.Background()

	a := entity.NewProject("A", "fmt_unap", "prompt_1", nil)
	b := entity.NewProject("B", "fmt_una", "prompt_1", nil)
	c := entity.NewProject("C", "fmt_unap", "prompt_2", nil)
	c.Status = entity.ProjectStatusCompleted
	// 保证创建时间可区分
	b.CreatedAt = a.CreatedAt.Add(time.Second)
	c.CreatedAt = a.CreatedAt.Add(2 * time.Second)

	for _, p := range []*entity.Project{a, b, c} {
		require.NoError(t, repo.Create(ctx, p))
	}

	all, err := repo.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// 创建时间倒序
	assert.Equal(t, "C", all[0].Title)
	assert.Equal(t, "A", all[2].Title)

	byFormat, err := repo.List(ctx, &repository.ProjectFilter{FormatID: "fmt_unap"})
	require.NoError(t, err)
	assert.Len(t, byFormat, 2)

	byStatus, err := repo.List(ctx, &repository.ProjectFilter{Status: entity.ProjectStatusCompleted})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "C", byStatus[0].Title)

	byPrompt, err := repo.List(ctx, &repository.ProjectFilter{PromptID: "prompt_2"})
	require.NoError(t, err)
	assert.Len(t, byPrompt, 1)
}

func TestCollection_InitializesMissingFile(t *testing.T) {
	repo, path := newTestProjectRepo(t)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	items, err := repo.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, items)

	// 首次读取后文件被初始化为空集合
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestCollection_RecoversFromCorruptedTail(t *testing.T) {
	repo, path := newTestProjectRepo(t)
	ctx := context.Background()

	p := entity.NewProject("Tesis", "fmt_unap", "", nil)
	require.NoError(t, repo.Create(ctx, p))

	// 模拟写坏的尾部：合法数组后跟垃圾字节
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, []byte("{{{garbage")...), 0o644))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	// 自愈后文件重新可解析
	healed, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(healed), "garbage")
}

func TestCollection_ResetsUnrecoverableFile(t *testing.T) {
	repo, path := newTestProjectRepo(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("???no es json???"), 0o644))

	items, err := repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}
