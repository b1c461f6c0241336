package handler

import (
	"github.com/gin-gonic/gin"

	"gicagen-api/internal/interfaces/http/dto"
	"gicagen-api/pkg/errors"
	"gicagen-api/pkg/logger"
)

// respondError 统一错误出口：AppError 按其 HTTP 状态返回，其余归为 500
func respondError(c *gin.Context, err error, fallback string) {
	if errors.IsAppError(err) {
		appErr := errors.AsAppError(err)
		detail := &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		}
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
		return
	}
	logger.Error(c.Request.Context(), fallback, err)
	dto.InternalError(c, fallback)
}
