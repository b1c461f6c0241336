package jsonstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gicagen-api/internal/config"
	"gicagen-api/internal/domain/entity"
	apperrors "gicagen-api/pkg/errors"
)

func newTestPromptRepo(t *testing.T) *PromptRepo {
	t.Helper()
	return NewPromptRepo(&config.StorageConfig{
		DataDir:    t.TempDir(),
		PromptFile: "prompts.json",
	})
}

func TestPromptRepo_CreateAndGet(t *testing.T) {
	repo := newTestPromptRepo(t)
	ctx := context.Background()

	p := entity.NewPrompt("Tesis UNAP", "tesis", "Tema: {{tema}}", []string{"tema"})
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tesis UNAP", got.Name)
	assert.True(t, got.IsActive)

	err = repo.Create(ctx, p)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.AsAppError(err).Code)
}

func TestPromptRepo_UpdateAndDelete(t *testing.T) {
	repo := newTestPromptRepo(t)
	ctx := context.Background()

	p := entity.NewPrompt("Borrador", "tesis", "Tema: {{tema}}", nil)
	require.NoError(t, repo.Create(ctx, p))

	p.Name = "Definitivo"
	p.IsActive = false
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Definitivo", got.Name)
	assert.False(t, got.IsActive)

	require.NoError(t, repo.Delete(ctx, p.ID))
	err = repo.Delete(ctx, p.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePromptNotFound, apperrors.AsAppError(err).Code)

	_, err = repo.GetByID(ctx, p.ID)
	require.Error(t, err)
}

func TestPromptRepo_UpdateMissing(t *testing.T) {
	repo := newTestPromptRepo(t)

	p := entity.NewPrompt("Huerfano", "tesis", "x", nil)
	err := repo.Update(context.Background(), p)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePromptNotFound, apperrors.AsAppError(err).Code)
}

func TestPromptRepo_ListOrderedByCreatedAtDesc(t *testing.T) {
	repo := newTestPromptRepo(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"primero", "segundo", "tercero"} {
		p := entity.NewPrompt(name, "tesis", "x", nil)
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, p))
	}

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "tercero", list[0].Name)
	assert.Equal(t, "primero", list[2].Name)
}
