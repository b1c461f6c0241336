// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"encoding/json"
	"time"

	"gicagen-api/internal/domain/entity"
)

// CreateProjectRequest 创建项目请求
// 字段同时接受 camelCase 与 snake_case 两种命名，便于不同前端接入
type CreateProjectRequest struct {
	Title    string            `json:"title" binding:"required"`
	FormatID string            `json:"formatId" binding:"required"`
	PromptID string            `json:"promptId"`
	Values   map[string]string `json:"values"`
}

// UnmarshalJSON 同时接受 formatId/format_id 与 promptId/prompt_id
func (r *CreateProjectRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title       string            `json:"title"`
		FormatID    string            `json:"formatId"`
		FormatIDAlt string            `json:"format_id"`
		PromptID    string            `json:"promptId"`
		PromptIDAlt string            `json:"prompt_id"`
		Values      map[string]string `json:"values"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Title = raw.Title
	r.FormatID = firstNonEmpty(raw.FormatID, raw.FormatIDAlt)
	r.PromptID = firstNonEmpty(raw.PromptID, raw.PromptIDAlt)
	r.Values = raw.Values
	return nil
}

// ToProjectEntity 转换为领域实体
func (r *CreateProjectRequest) ToProjectEntity() *entity.Project {
	return entity.NewProject(r.Title, r.FormatID, r.PromptID, r.Values)
}

// UpdateProjectRequest 更新项目请求，空字段保持原值
type UpdateProjectRequest struct {
	Title    *string            `json:"title"`
	PromptID *string            `json:"promptId"`
	Values   *map[string]string `json:"values"`
}

// UnmarshalJSON 同时接受 promptId/prompt_id
func (r *UpdateProjectRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title       *string            `json:"title"`
		PromptID    *string            `json:"promptId"`
		PromptIDAlt *string            `json:"prompt_id"`
		Values      *map[string]string `json:"values"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Title = raw.Title
	r.PromptID = raw.PromptID
	if r.PromptID == nil {
		r.PromptID = raw.PromptIDAlt
	}
	r.Values = raw.Values
	return nil
}

// ApplyToProject 把更新内容套用到实体
func (r *UpdateProjectRequest) ApplyToProject(p *entity.Project) {
	if r.Title != nil {
		p.Title = *r.Title
	}
	if r.PromptID != nil {
		p.PromptID = *r.PromptID
	}
	if r.Values != nil {
		p.Values = *r.Values
	}
	p.UpdatedAt = time.Now()
}

// ProgressResponse 进度
type ProgressResponse struct {
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	CurrentPath string `json:"currentPath,omitempty"`
	Provider    string `json:"provider,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// ArtifactResponse 可下载产物
type ArtifactResponse struct {
	Type        string `json:"type"`
	DownloadURL string `json:"downloadUrl"`
}

// ProjectSummaryResponse 项目摘要（列表视图）
type ProjectSummaryResponse struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	FormatID  string           `json:"formatId"`
	PromptID  string           `json:"promptId,omitempty"`
	Status    string           `json:"status"`
	Progress  ProgressResponse `json:"progress"`
	Error     string           `json:"error,omitempty"`
	CreatedAt string           `json:"createdAt"`
	UpdatedAt string           `json:"updatedAt"`
}

// ProjectResponse 项目详情
type ProjectResponse struct {
	ProjectSummaryResponse
	Values    map[string]string  `json:"values,omitempty"`
	AIResult  *entity.AIResult   `json:"aiResult,omitempty"`
	Artifacts []ArtifactResponse `json:"artifacts,omitempty"`
	RunID     string             `json:"runId,omitempty"`
}

// ProjectListResponse 项目列表
type ProjectListResponse struct {
	Projects []*ProjectSummaryResponse `json:"projects"`
}

// GenerateAcceptedResponse 生成请求受理回执
type GenerateAcceptedResponse struct {
	ProjectID string `json:"projectId"`
	RunID     string `json:"runId"`
	Status    string `json:"status"`
}

// ToProjectSummaryResponse 转换为摘要响应
func ToProjectSummaryResponse(p *entity.Project) *ProjectSummaryResponse {
	return &ProjectSummaryResponse{
		ID:        p.ID,
		Title:     p.Title,
		FormatID:  p.FormatID,
		PromptID:  p.PromptID,
		Status:    string(p.Status),
		Progress:  toProgressResponse(p.Progress),
		Error:     p.Error,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ToProjectResponse 转换为详情响应
func ToProjectResponse(p *entity.Project) *ProjectResponse {
	artifacts := make([]ArtifactResponse, 0, len(p.Artifacts))
	for _, a := range p.Artifacts {
		artifacts = append(artifacts, ArtifactResponse{
			Type:        string(a.Type),
			DownloadURL: a.DownloadURL,
		})
	}
	return &ProjectResponse{
		ProjectSummaryResponse: *ToProjectSummaryResponse(p),
		Values:                 p.Values,
		AIResult:               p.AIResult,
		Artifacts:              artifacts,
		RunID:                  p.RunID,
	}
}

// ToProjectListResponse 转换为列表响应
func ToProjectListResponse(items []*entity.Project) *ProjectListResponse {
	out := make([]*ProjectSummaryResponse, 0, len(items))
	for _, p := range items {
		out = append(out, ToProjectSummaryResponse(p))
	}
	return &ProjectListResponse{Projects: out}
}

func toProgressResponse(p entity.Progress) ProgressResponse {
	resp := ProgressResponse{
		Current:     p.Current,
		Total:       p.Total,
		CurrentPath: p.CurrentPath,
		Provider:    p.Provider,
	}
	if !p.UpdatedAt.IsZero() {
		resp.UpdatedAt = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
