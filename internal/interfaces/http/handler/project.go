// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gicagen-api/internal/domain/entity"
	"gicagen-api/internal/domain/repository"
	"gicagen-api/internal/infrastructure/messaging"
	"gicagen-api/internal/interfaces/http/dto"
	apperrors "gicagen-api/pkg/errors"
	"gicagen-api/pkg/logger"
)

// ProjectHandler 项目处理器
type ProjectHandler struct {
	projectRepo repository.ProjectRepository
	promptRepo  repository.PromptRepository
	producer    *messaging.Producer
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(
	projectRepo repository.ProjectRepository,
	promptRepo repository.PromptRepository,
	producer *messaging.Producer,
) *ProjectHandler {
	return &ProjectHandler{
		projectRepo: projectRepo,
		promptRepo:  promptRepo,
		producer:    producer,
	}
}

// ListProjects 获取项目列表
// @Summary 获取项目列表
// @Description 获取项目列表，可按状态和格式过滤
// @Tags Projects
// @Accept json
// @Produce json
// @Param status query string false "项目状态"
// @Param format_id query string false "格式 ID"
// @Success 200 {object} dto.Response[dto.ProjectListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/projects [get]
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	ctx := c.Request.Context()

	filter := &repository.ProjectFilter{
		Status:   entity.ProjectStatus(c.Query("status")),
		FormatID: c.Query("format_id"),
		PromptID: c.Query("prompt_id"),
	}

	items, err := h.projectRepo.List(ctx, filter)
	if err != nil {
		respondError(c, err, "failed to list projects")
		return
	}

	dto.Success(c, dto.ToProjectListResponse(items))
}

// CreateProject 创建项目
// @Summary 创建项目
// @Description 创建草稿状态的文档生成项目
// @Tags Projects
// @Accept json
// @Produce json
// @Param body body dto.CreateProjectRequest true "项目信息"
// @Success 201 {object} dto.Response[dto.ProjectResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/projects [post]
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	project := req.ToProjectEntity()

	if err := h.projectRepo.Create(ctx, project); err != nil {
		respondError(c, err, "failed to create project")
		return
	}

	logger.Info(ctx, "project created", "project_id", project.ID, "format_id", project.FormatID)
	dto.Created(c, dto.ToProjectResponse(project))
}

// GetProject 获取项目详情
// @Summary 获取项目详情
// @Description 获取指定项目的详细信息，包含生成结果与进度
// @Tags Projects
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/projects/{pid} [get]
func (h *ProjectHandler) GetProject(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	project, err := h.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		respondError(c, err, "failed to get project")
		return
	}

	dto.Success(c, dto.ToProjectResponse(project))
}

// UpdateProject 更新项目
// @Summary 更新项目
// @Description 更新项目标题、模板或变量值；生成中的项目不可修改
// @Tags Projects
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.UpdateProjectRequest true "更新内容"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/projects/{pid} [put]
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	project, err := h.projectRepo.Mutate(ctx, projectID, func(p *entity.Project) error {
		if p.Status == entity.ProjectStatusGenerating || p.Status == entity.ProjectStatusCancelRequested {
			return apperrors.ErrGenerationRunning.WithDetail("project cannot be edited while generating")
		}
		req.ApplyToProject(p)
		return nil
	})
	if err != nil {
		respondError(c, err, "failed to update project")
		return
	}

	dto.Success(c, dto.ToProjectResponse(project))
}

// DeleteProject 删除项目
// @Summary 删除项目
// @Description 删除指定项目
// @Tags Projects
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 204 "No Content"
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/projects/{pid} [delete]
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	if err := h.projectRepo.Delete(ctx, projectID); err != nil {
		respondError(c, err, "failed to delete project")
		return
	}

	c.Status(http.StatusNoContent)
}

// GenerateProject 触发项目生成
// @Summary 触发项目生成
// @Description 将项目置为生成中并投递后台生成任务；运行中的项目返回 409
// @Tags Projects
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 202 {object} dto.Response[dto.GenerateAcceptedResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/projects/{pid}/generate [post]
func (h *ProjectHandler) GenerateProject(c *gin.Context) {
	h.enqueueRun(c, "generate")
}

// RetryProject 重试项目生成
// @Summary 重试项目生成
// @Description 对终态项目重新发起完整的生成运行，从第一个小节重新开始
// @Tags Projects
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 202 {object} dto.Response[dto.GenerateAcceptedResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/projects/{pid}/retry [post]
func (h *ProjectHandler) RetryProject(c *gin.Context) {
	h.enqueueRun(c, "retry")
}

// enqueueRun 公共的生成触发逻辑：状态检查、置为 generating、投递任务
func (h *ProjectHandler) enqueueRun(c *gin.Context, trigger string) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)
	runID := "run_" + uuid.NewString()

	project, err := h.projectRepo.Mutate(ctx, projectID, func(p *entity.Project) error {
		if !p.CanGenerate() {
			return apperrors.ErrGenerationRunning.WithDetail("current status: " + string(p.Status))
		}
		if p.PromptID != "" {
			if _, perr := h.promptRepo.GetByID(ctx, p.PromptID); perr != nil {
				return perr
			}
		}
		// 进度总数由 worker 编译大纲后确定
		p.StartRun(runID, 0)
		return nil
	})
	if err != nil {
		respondError(c, err, "failed to start generation")
		return
	}

	job := &messaging.GenerationJobMessage{
		ProjectID: project.ID,
		RunID:     runID,
		Trigger:   trigger,
	}
	if _, err := h.producer.PublishGenerationJob(ctx, job); err != nil {
		logger.Error(ctx, "failed to enqueue generation job", err, "project_id", project.ID, "run_id", runID)
		// 无法投递时回滚为失败终态，避免项目卡死在 generating
		_, _ = h.projectRepo.Mutate(ctx, project.ID, func(p *entity.Project) error {
			if p.RunID == runID {
				p.Finish(entity.ProjectStatusFailed, "no se pudo encolar la generacion")
			}
			return nil
		})
		respondError(c, apperrors.ErrQueueError.WithError(err), "failed to enqueue generation job")
		return
	}

	logger.Info(ctx, "generation run enqueued",
		"project_id", project.ID, "run_id", runID, "trigger", trigger)
	dto.Accepted(c, &dto.GenerateAcceptedResponse{
		ProjectID: project.ID,
		RunID:     runID,
		Status:    string(entity.ProjectStatusGenerating),
	})
}

// CancelProject 取消生成
// @Summary 取消生成
// @Description 请求取消进行中的生成运行，worker 在小节边界处观察并落终态
// @Tags Projects
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/projects/{pid}/cancel [post]
func (h *ProjectHandler) CancelProject(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	project, err := h.projectRepo.Mutate(ctx, projectID, func(p *entity.Project) error {
		if !p.RequestCancel() {
			return apperrors.ErrInvalidTransition.WithDetail(
				"cancel only applies to generating projects, current status: " + string(p.Status))
		}
		return nil
	})
	if err != nil {
		respondError(c, err, "failed to cancel generation")
		return
	}

	logger.Info(ctx, "generation cancel requested", "project_id", project.ID, "run_id", project.RunID)
	dto.Success(c, dto.ToProjectResponse(project))
}

// GetProjectEvents 获取项目事件快照
// @Summary 获取项目事件快照
// @Description 返回当前运行的诊断事件（最多保留最近 200 条）与进度
// @Tags Projects
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.ProjectEventsResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/projects/{pid}/events [get]
func (h *ProjectHandler) GetProjectEvents(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	project, err := h.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		respondError(c, err, "failed to get project events")
		return
	}

	dto.Success(c, dto.ToProjectEventsResponse(project))
}
