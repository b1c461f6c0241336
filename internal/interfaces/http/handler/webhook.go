// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"gicagen-api/internal/domain/entity"
	"gicagen-api/internal/domain/repository"
	"gicagen-api/internal/infrastructure/webhook"
	"gicagen-api/internal/interfaces/http/dto"
	"gicagen-api/pkg/logger"
)

// WebhookHandler 渲染服务回调处理器
type WebhookHandler struct {
	projectRepo repository.ProjectRepository
	webhook     *webhook.Client
}

// NewWebhookHandler 创建回调处理器
func NewWebhookHandler(projectRepo repository.ProjectRepository, webhookClient *webhook.Client) *WebhookHandler {
	return &WebhookHandler{
		projectRepo: projectRepo,
		webhook:     webhookClient,
	}
}

// renderCallbackRequest 渲染服务回调载荷
type renderCallbackRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
	Artifacts []struct {
		Type        string `json:"type" binding:"required"`
		DownloadURL string `json:"downloadUrl" binding:"required"`
	} `json:"artifacts" binding:"required"`
}

// RenderCallback 接收渲染服务的产物回调
// @Summary 渲染产物回调
// @Description 渲染服务生成 DOCX/PDF 后回调本接口，携带共享密钥头，产物链接写入项目
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-GICAGEN-SECRET header string true "共享密钥"
// @Success 200 {object} dto.Response[dto.ProjectResponse]
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/webhooks/render [post]
func (h *WebhookHandler) RenderCallback(c *gin.Context) {
	ctx := c.Request.Context()

	if !h.webhook.VerifySecret(c.GetHeader(webhook.SecretHeader)) {
		dto.Unauthorized(c, "invalid webhook secret")
		return
	}

	var req renderCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	project, err := h.projectRepo.Mutate(ctx, req.ProjectID, func(p *entity.Project) error {
		artifacts := make([]entity.Artifact, 0, len(req.Artifacts))
		for _, a := range req.Artifacts {
			artifacts = append(artifacts, entity.Artifact{
				Type:        entity.ArtifactType(a.Type),
				DownloadURL: a.DownloadURL,
			})
		}
		p.Artifacts = artifacts
		return nil
	})
	if err != nil {
		respondError(c, err, "failed to attach render artifacts")
		return
	}

	logger.Info(ctx, "render artifacts attached",
		"project_id", project.ID, "artifacts", len(project.Artifacts))
	dto.Success(c, dto.ToProjectResponse(project))
}
