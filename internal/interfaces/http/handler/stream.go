// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"gicagen-api/internal/domain/repository"
	"gicagen-api/internal/interfaces/http/dto"
)

// StreamHandler 生成进度的 SSE 推送处理器
//
// worker 在每个小节边界把进度与事件写回存储，这里按固定间隔轮询
// 并把增量事件推给前端，项目落终态后结束流
type StreamHandler struct {
	projectRepo  repository.ProjectRepository
	pollInterval time.Duration
}

// NewStreamHandler 创建流式响应处理器
func NewStreamHandler(projectRepo repository.ProjectRepository) *StreamHandler {
	return &StreamHandler{
		projectRepo:  projectRepo,
		pollInterval: time.Second,
	}
}

// StreamProjectEvents 流式推送项目生成进度
// @Summary 流式推送项目生成进度
// @Description 通过 SSE 推送生成事件与进度，项目进入终态后发送 done 事件并关闭
// @Tags Projects
// @Accept json
// @Produce text/event-stream
// @Param pid path string true "项目 ID"
// @Success 200 "SSE stream"
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/projects/{pid}/events/stream [get]
func (h *StreamHandler) StreamProjectEvents(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	project, err := h.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		respondError(c, err, "failed to get project")
		return
	}

	// SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 先推当前快照，再按间隔推增量
	sent := len(project.Events)
	c.SSEvent("snapshot", dto.ToProjectEventsResponse(project))
	c.Writer.Flush()

	if project.Status.IsTerminal() {
		c.SSEvent("done", gin.H{"status": string(project.Status)})
		return
	}

	lastRunID := project.RunID
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			// 客户端断开
			return false

		case <-ticker.C:
			current, err := h.projectRepo.GetByID(ctx, projectID)
			if err != nil {
				c.SSEvent("error", gin.H{"message": err.Error()})
				return false
			}

			// 新的运行开始时事件序列被重置
			if current.RunID != lastRunID {
				lastRunID = current.RunID
				sent = 0
			}
			if sent > len(current.Events) {
				sent = 0
			}

			for _, ev := range current.Events[sent:] {
				c.SSEvent("event", dto.ToTraceEventResponse(ev))
			}
			sent = len(current.Events)

			c.SSEvent("progress", gin.H{
				"status":   string(current.Status),
				"progress": dto.ToProjectEventsResponse(current).Progress,
			})

			if current.Status.IsTerminal() {
				c.SSEvent("done", gin.H{"status": string(current.Status)})
				return false
			}
			return true
		}
	})
}
