// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// 格式目录（上游代理）
	formats := v1.Group("/formats")
	{
		formats.GET("", h.Format.ListFormats)
		formats.GET("/version", h.Format.GetFormatsVersion)
		formats.GET("/:fid", h.Format.GetFormat)
	}

	// 提示词模板管理
	prompts := v1.Group("/prompts")
	{
		prompts.GET("", h.Prompt.ListPrompts)
		prompts.POST("", h.Prompt.CreatePrompt)
		prompts.GET("/:prid", h.Prompt.GetPrompt)
		prompts.PUT("/:prid", h.Prompt.UpdatePrompt)
		prompts.DELETE("/:prid", h.Prompt.DeletePrompt)
	}

	// 项目管理
	projects := v1.Group("/projects")
	{
		projects.GET("", h.Project.ListProjects)
		projects.POST("", h.Project.CreateProject)
		projects.GET("/:pid", h.Project.GetProject)
		projects.PUT("/:pid", h.Project.UpdateProject)
		projects.DELETE("/:pid", h.Project.DeleteProject)

		// 生成运行
		projects.POST("/:pid/generate", h.Project.GenerateProject)
		projects.POST("/:pid/cancel", h.Project.CancelProject)
		projects.POST("/:pid/retry", h.Project.RetryProject)

		// 运行诊断
		projects.GET("/:pid/events", h.Project.GetProjectEvents)
		projects.GET("/:pid/events/stream", h.Stream.StreamProjectEvents) // SSE
	}

	// 渲染服务回调
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/render", h.Webhook.RenderCallback)
	}
}
