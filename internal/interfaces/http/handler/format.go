// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"gicagen-api/internal/infrastructure/formats"
	"gicagen-api/internal/interfaces/http/dto"
)

// FormatHandler 格式目录处理器，代理上游 GicaTesis 服务
type FormatHandler struct {
	client *formats.Client
}

// NewFormatHandler 创建格式目录处理器
func NewFormatHandler(client *formats.Client) *FormatHandler {
	return &FormatHandler{client: client}
}

// ListFormats 获取格式列表
// @Summary 获取格式列表
// @Description 获取可用的文档格式目录，支持按大学、类别和文档类型过滤；上游不可用时可能返回过期缓存副本（stale=true）
// @Tags Formats
// @Accept json
// @Produce json
// @Param university query string false "大学标识"
// @Param category query string false "类别"
// @Param document_type query string false "文档类型"
// @Param search query string false "模糊搜索"
// @Success 200 {object} dto.Response[dto.FormatListResponse]
// @Failure 502 {object} dto.ErrorResponse
// @Failure 504 {object} dto.ErrorResponse
// @Router /api/v1/formats [get]
func (h *FormatHandler) ListFormats(c *gin.Context) {
	ctx := c.Request.Context()

	filter := formats.Filter{
		University:   c.Query("university"),
		Category:     c.Query("category"),
		DocumentType: c.Query("document_type"),
		Search:       c.Query("search"),
	}

	list, err := h.client.List(ctx, filter)
	if err != nil {
		respondError(c, err, "failed to list formats")
		return
	}

	dto.Success(c, dto.ToFormatListResponse(list))
}

// GetFormat 获取格式详情
// @Summary 获取格式详情
// @Description 获取指定格式的完整定义，包含向导字段与嵌套结构
// @Tags Formats
// @Accept json
// @Produce json
// @Param fid path string true "格式 ID"
// @Success 200 {object} dto.Response[dto.FormatDetailResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/formats/{fid} [get]
func (h *FormatHandler) GetFormat(c *gin.Context) {
	ctx := c.Request.Context()
	formatID := dto.BindFormatID(c)

	detail, err := h.client.GetDetail(ctx, formatID)
	if err != nil {
		respondError(c, err, "failed to get format")
		return
	}

	dto.Success(c, dto.ToFormatDetailResponse(detail))
}

// GetFormatsVersion 获取目录版本
// @Summary 获取格式目录版本
// @Description 获取上游目录版本号；版本变化时本地缓存会自动失效
// @Tags Formats
// @Accept json
// @Produce json
// @Success 200 {object} dto.Response[dto.FormatsVersionResponse]
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/v1/formats/version [get]
func (h *FormatHandler) GetFormatsVersion(c *gin.Context) {
	ctx := c.Request.Context()

	ver, err := h.client.GetVersion(ctx)
	if err != nil {
		respondError(c, err, "failed to get formats version")
		return
	}

	dto.Success(c, &dto.FormatsVersionResponse{
		Version: ver.Version,
		Changed: ver.Changed,
	})
}
