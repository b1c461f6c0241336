// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gicagen-api/internal/domain/repository"
	"gicagen-api/internal/interfaces/http/dto"
	"gicagen-api/pkg/logger"
)

// PromptHandler 提示词模板处理器
type PromptHandler struct {
	promptRepo repository.PromptRepository
}

// NewPromptHandler 创建提示词模板处理器
func NewPromptHandler(promptRepo repository.PromptRepository) *PromptHandler {
	return &PromptHandler{promptRepo: promptRepo}
}

// ListPrompts 获取模板列表
// @Summary 获取提示词模板列表
// @Description 获取全部提示词模板
// @Tags Prompts
// @Accept json
// @Produce json
// @Success 200 {object} dto.Response[dto.PromptListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/v1/prompts [get]
func (h *PromptHandler) ListPrompts(c *gin.Context) {
	ctx := c.Request.Context()

	items, err := h.promptRepo.List(ctx)
	if err != nil {
		respondError(c, err, "failed to list prompts")
		return
	}

	dto.Success(c, dto.ToPromptListResponse(items))
}

// CreatePrompt 创建模板
// @Summary 创建提示词模板
// @Description 创建新的提示词模板，模板中的 {{变量}} 在生成时由项目变量替换
// @Tags Prompts
// @Accept json
// @Produce json
// @Param body body dto.CreatePromptRequest true "模板信息"
// @Success 201 {object} dto.Response[dto.PromptResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/prompts [post]
func (h *PromptHandler) CreatePrompt(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	prompt := req.ToPromptEntity()
	if err := h.promptRepo.Create(ctx, prompt); err != nil {
		respondError(c, err, "failed to create prompt")
		return
	}

	logger.Info(ctx, "prompt created", "prompt_id", prompt.ID, "name", prompt.Name)
	dto.Created(c, dto.ToPromptResponse(prompt))
}

// GetPrompt 获取模板详情
// @Summary 获取提示词模板详情
// @Description 获取指定模板的完整内容
// @Tags Prompts
// @Accept json
// @Produce json
// @Param prid path string true "模板 ID"
// @Success 200 {object} dto.Response[dto.PromptResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/prompts/{prid} [get]
func (h *PromptHandler) GetPrompt(c *gin.Context) {
	ctx := c.Request.Context()
	promptID := dto.BindPromptID(c)

	prompt, err := h.promptRepo.GetByID(ctx, promptID)
	if err != nil {
		respondError(c, err, "failed to get prompt")
		return
	}

	dto.Success(c, dto.ToPromptResponse(prompt))
}

// UpdatePrompt 更新模板
// @Summary 更新提示词模板
// @Description 更新指定模板的内容
// @Tags Prompts
// @Accept json
// @Produce json
// @Param prid path string true "模板 ID"
// @Param body body dto.UpdatePromptRequest true "更新内容"
// @Success 200 {object} dto.Response[dto.PromptResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/prompts/{prid} [put]
func (h *PromptHandler) UpdatePrompt(c *gin.Context) {
	ctx := c.Request.Context()
	promptID := dto.BindPromptID(c)

	var req dto.UpdatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	prompt, err := h.promptRepo.GetByID(ctx, promptID)
	if err != nil {
		respondError(c, err, "failed to get prompt")
		return
	}

	req.ApplyToPrompt(prompt)

	if err := h.promptRepo.Update(ctx, prompt); err != nil {
		respondError(c, err, "failed to update prompt")
		return
	}

	dto.Success(c, dto.ToPromptResponse(prompt))
}

// DeletePrompt 删除模板
// @Summary 删除提示词模板
// @Description 删除指定模板
// @Tags Prompts
// @Accept json
// @Produce json
// @Param prid path string true "模板 ID"
// @Success 204 "No Content"
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/prompts/{prid} [delete]
func (h *PromptHandler) DeletePrompt(c *gin.Context) {
	ctx := c.Request.Context()
	promptID := dto.BindPromptID(c)

	if err := h.promptRepo.Delete(ctx, promptID); err != nil {
		respondError(c, err, "failed to delete prompt")
		return
	}

	c.Status(http.StatusNoContent)
}
