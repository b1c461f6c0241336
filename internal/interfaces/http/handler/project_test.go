package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gicagen-api/internal/domain/entity"
	"gicagen-api/internal/domain/repository"
	"gicagen-api/internal/infrastructure/messaging"
	apperrors "gicagen-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ---- 进程内仓储替身 ----

type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*entity.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: map[string]*entity.Project{}}
}

func cloneProject(p *entity.Project) *entity.Project {
	raw, _ := json.Marshal(p)
	var out entity.Project
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (r *memProjectRepo) Create(_ context.Context, p *entity.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[p.ID]; ok {
		return apperrors.ErrConflict.WithDetail(p.ID)
	}
	r.projects[p.ID] = cloneProject(p)
	return nil
}

func (r *memProjectRepo) GetByID(_ context.Context, id string) (*entity.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, apperrors.ErrProjectNotFound.WithDetail(id)
	}
	return cloneProject(p), nil
}

func (r *memProjectRepo) Update(ctx context.Context, p *entity.Project) error {
	_, err := r.Mutate(ctx, p.ID, func(stored *entity.Project) error {
		*stored = *p
		return nil
	})
	return err
}

func (r *memProjectRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return apperrors.ErrProjectNotFound.WithDetail(id)
	}
	delete(r.projects, id)
	return nil
}

func (r *memProjectRepo) List(_ context.Context, filter *repository.ProjectFilter) ([]*entity.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Project, 0, len(r.projects))
	for _, p := range r.projects {
		if filter != nil && filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, cloneProject(p))
	}
	return out, nil
}

func (r *memProjectRepo) Mutate(_ context.Context, id string, fn func(p *entity.Project) error) (*entity.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, apperrors.ErrProjectNotFound.WithDetail(id)
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	return cloneProject(p), nil
}

type memPromptRepo struct {
	mu      sync.Mutex
	prompts map[string]*entity.Prompt
}

func newMemPromptRepo() *memPromptRepo {
	return &memPromptRepo{prompts: map[string]*entity.Prompt{}}
}

func (r *memPromptRepo) Create(_ context.Context, p *entity.Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[p.ID] = p
	return nil
}

func (r *memPromptRepo) GetByID(_ context.Context, id string) (*entity.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prompts[id]
	if !ok {
		return nil, apperrors.ErrPromptNotFound.WithDetail(id)
	}
	return p, nil
}

func (r *memPromptRepo) Update(_ context.Context, p *entity.Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts[p.ID] = p
	return nil
}

func (r *memPromptRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prompts, id)
	return nil
}

func (r *memPromptRepo) List(_ context.Context) ([]*entity.Prompt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Prompt, 0, len(r.prompts))
	for _, p := range r.prompts {
		out = append(out, p)
	}
	return out, nil
}

// ---- 测试装配 ----

type projectHandlerFixture struct {
	router   *gin.Engine
	projects *memProjectRepo
	prompts  *memPromptRepo
	redis    *miniredis.Miniredis
	rdb      *goredis.Client
}

func newProjectHandlerFixture(t *testing.T) *projectHandlerFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	projects := newMemProjectRepo()
	prompts := newMemPromptRepo()
	producer := messaging.NewProducer(rdb, 1000)
	h := NewProjectHandler(projects, prompts, producer)

	router := gin.New()
	group := router.Group("/api/v1/projects")
	group.GET("", h.ListProjects)
	group.POST("", h.CreateProject)
	group.GET("/:pid", h.GetProject)
	group.PUT("/:pid", h.UpdateProject)
	group.DELETE("/:pid", h.DeleteProject)
	group.POST("/:pid/generate", h.GenerateProject)
	group.POST("/:pid/cancel", h.CancelProject)
	group.POST("/:pid/retry", h.RetryProject)
	group.GET("/:pid/events", h.GetProjectEvents)

	return &projectHandlerFixture{router: router, projects: projects, prompts: prompts, redis: mr, rdb: rdb}
}

func (fx *projectHandlerFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func (fx *projectHandlerFixture) seedDraft(t *testing.T) *entity.Project {
	t.Helper()
	p := entity.NewProject("Tesis UNAP", "fmt_unap", "", map[string]string{"tema": "agua"})
	require.NoError(t, fx.projects.Create(context.Background(), p))
	return p
}

// ---- 测试 ----

func TestProjectHandler_CreateProject(t *testing.T) {
	fx := newProjectHandlerFixture(t)

	w := fx.do(http.MethodPost, "/api/v1/projects", gin.H{
		"title":    "Gestión hídrica en Puno",
		"formatId": "fmt_unap",
		"values":   gin.H{"tema": "agua"},
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data struct {
			ID     string `json:"id"`
			Title  string `json:"title"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, "Gestión hídrica en Puno", resp.Data.Title)
	assert.Equal(t, "draft", resp.Data.Status)
}

func TestProjectHandler_CreateProject_SnakeCaseAlias(t *testing.T) {
	fx := newProjectHandlerFixture(t)

	// 前端历史版本用 snake_case 字段名
	w := fx.do(http.MethodPost, "/api/v1/projects", gin.H{
		"title":     "Tesis",
		"format_id": "fmt_unap",
	})

	require.Equal(t, http.StatusCreated, w.Code)
}

func TestProjectHandler_CreateProject_MissingFormat(t *testing.T) {
	fx := newProjectHandlerFixture(t)

	w := fx.do(http.MethodPost, "/api/v1/projects", gin.H{"title": "Sin formato"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectHandler_Generate_Accepted(t *testing.T) {
	fx := newProjectHandlerFixture(t)
	p := fx.seedDraft(t)

	w := fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/generate", nil)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data struct {
			ProjectID string `json:"projectId"`
			RunID     string `json:"runId"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, p.ID, resp.Data.ProjectID)
	assert.NotEmpty(t, resp.Data.RunID)
	assert.Equal(t, "generating", resp.Data.Status)

	// 项目已置为 generating，任务已入队
	stored, err := fx.projects.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusGenerating, stored.Status)
	assert.Equal(t, resp.Data.RunID, stored.RunID)

	count, err := fx.rdb.XLen(context.Background(), string(messaging.StreamGeneration)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestProjectHandler_Generate_ConflictWhileRunning(t *testing.T) {
	fx := newProjectHandlerFixture(t)
	p := fx.seedDraft(t)

	first := fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/generate", nil)
	require.Equal(t, http.StatusAccepted, first.Code)

	second := fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/generate", nil)
	assert.Equal(t, http.StatusConflict, second.Code)

	// 队列中只有第一次的任务
	count, err := fx.rdb.XLen(context.Background(), string(messaging.StreamGeneration)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestProjectHandler_Generate_UnknownPromptRejected(t *testing.T) {
	fx := newProjectHandlerFixture(t)
	p := entity.NewProject("Tesis", "fmt_unap", "prompt_missing", nil)
	require.NoError(t, fx.projects.Create(context.Background(), p))

	w := fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/generate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 状态不能被污染
	stored, err := fx.projects.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusDraft, stored.Status)
}

func TestProjectHandler_Generate_EnqueueFailureRollsBack(t *testing.T) {
	fx := newProjectHandlerFixture(t)
	p := fx.seedDraft(t)

	// 队列不可用
	fx.redis.Close()

	w := fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/generate", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// 项目不能卡死在 generating
	stored, err := fx.projects.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
}

func TestProjectHandler_Retry_FromTerminalState(t *testing.T) {
	fx := newProjectHandlerFixture(t)
	p := fx.seedDraft(t)
	_, err := fx.projects.Mutate(context.Background(), p.ID, func(p *entity.Project) error {
		p.StartRun("run_old", 3)
		p.AppendSection(entity.SectionResult{SectionID: "sec-0001", Path: "A", Content: "x"}, "gemini")
		p.Finish(entity.ProjectStatusFailed, "proveedor caído")
		return nil
	})
	require.NoError(t, err)

	w := fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/retry", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	// 重试从头开始：旧运行痕迹被清空
	stored, err := fx.projects.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusGenerating, stored.Status)
	assert.NotEqual(t, "run_old", stored.RunID)
	assert.Nil(t, stored.AIResult)
	assert.Equal(t, 0, stored.Progress.Current)
	assert.Empty(t, stored.Error)
}

func TestProjectHandler_Cancel(t *testing.T) {
	fx := newProjectHandlerFixture(t)
	p := fx.seedDraft(t)

	// draft 不可取消
	w := fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Equal(t, http.StatusAccepted, fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/generate", nil).Code)

	w = fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := fx.projects.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ProjectStatusCancelRequested, stored.Status)

	// 重复取消返回冲突
	w = fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProjectHandler_Update_RejectedWhileGenerating(t *testing.T) {
	fx := newProjectHandlerFixture(t)
	p := fx.seedDraft(t)

	require.Equal(t, http.StatusAccepted, fx.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/generate", nil).Code)

	w := fx.do(http.MethodPut, "/api/v1/projects/"+p.ID, gin.H{"title": "Nuevo título"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProjectHandler_GetProject_NotFound(t *testing.T) {
	fx := newProjectHandlerFixture(t)

	w := fx.do(http.MethodGet, "/api/v1/projects/proj_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjectHandler_Delete(t *testing.T) {
	fx := newProjectHandlerFixture(t)
	p := fx.seedDraft(t)

	w := fx.do(http.MethodDelete, "/api/v1/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = fx.do(http.MethodGet, "/api/v1/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjectHandler_GetProjectEvents(t *testing.T) {
	fx := newProjectHandlerFixture(t)
	p := fx.seedDraft(t)
	_, err := fx.projects.Mutate(context.Background(), p.ID, func(p *entity.Project) error {
		p.StartRun("run_1", 2)
		p.AppendEvent(entity.NewTraceEvent(entity.StepGenerateStart, entity.EventStatusRunning, "Generacion iniciada"))
		return nil
	})
	require.NoError(t, err)

	w := fx.do(http.MethodGet, "/api/v1/projects/"+p.ID+"/events", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			ProjectID string `json:"projectId"`
			RunID     string `json:"runId"`
			Status    string `json:"status"`
			Events    []struct {
				Step  string `json:"step"`
				Title string `json:"title"`
			} `json:"events"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, p.ID, resp.Data.ProjectID)
	assert.Equal(t, "run_1", resp.Data.RunID)
	assert.Equal(t, "generating", resp.Data.Status)
	require.Len(t, resp.Data.Events, 1)
	assert.Equal(t, entity.StepGenerateStart, resp.Data.Events[0].Step)
}
