// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusDraft                  ProjectStatus = "draft"
	ProjectStatusGenerating             ProjectStatus = "generating"
	ProjectStatusCancelRequested        ProjectStatus = "cancel_requested"
	ProjectStatusCompleted              ProjectStatus = "completed"
	ProjectStatusCompletedWithIncidents ProjectStatus = "completed_with_incidents"
	ProjectStatusFailed                 ProjectStatus = "failed"
	ProjectStatusBlocked                ProjectStatus = "blocked"
)

// IsTerminal 判断是否为终态
func (s ProjectStatus) IsTerminal() bool {
	switch s {
	case ProjectStatusCompleted, ProjectStatusCompletedWithIncidents,
		ProjectStatusFailed, ProjectStatusBlocked:
		return true
	}
	return false
}

// Progress 生成进度
// Current 在单次运行内单调不减，且始终满足 Current <= Total；
// Total 在运行开始时由编译后的大纲长度固定，运行期间不再变化
type Progress struct {
	Current     int       `json:"current"`
	Total       int       `json:"total"`
	CurrentPath string    `json:"current_path,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SectionResult 单个小节的生成结果
type SectionResult struct {
	SectionID string `json:"section_id"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

// AIResult 生成结果聚合
type AIResult struct {
	Sections []SectionResult `json:"sections"`
}

// ArtifactType 产物类型
type ArtifactType string

const (
	ArtifactTypeDOCX ArtifactType = "docx"
	ArtifactTypePDF  ArtifactType = "pdf"
)

// Artifact 可下载的渲染产物
type Artifact struct {
	Type        ArtifactType `json:"type"`
	DownloadURL string       `json:"download_url"`
}

// MaxProjectEvents 事件环形缓冲容量，超出后丢弃最旧的事件
const MaxProjectEvents = 200

// Project 文档生成项目（聚合根）
//
// 生命周期: draft -> generating -> {completed, completed_with_incidents, failed, blocked}
// cancel_requested 是 generating 的瞬态，由编排器在小节边界处解析为终态
type Project struct {
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	FormatID      string            `json:"format_id"`
	FormatName    string            `json:"format_name,omitempty"`
	FormatVersion string            `json:"format_version,omitempty"`
	PromptID      string            `json:"prompt_id"`
	PromptName    string            `json:"prompt_name,omitempty"`
	Values        map[string]string `json:"values,omitempty"`
	Status        ProjectStatus     `json:"status"`
	Progress      Progress          `json:"progress"`
	Events        []TraceEvent      `json:"events,omitempty"`
	AIResult      *AIResult         `json:"ai_result,omitempty"`
	Artifacts     []Artifact        `json:"artifacts,omitempty"`
	Error         string            `json:"error,omitempty"`
	RunID         string            `json:"run_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewProject 创建草稿状态的新项目
func NewProject(title, formatID, promptID string, values map[string]string) *Project {
	now := time.Now()
	if values == nil {
		values = map[string]string{}
	}
	return &Project{
		ID:        "proj_" + uuid.NewString(),
		Title:     title,
		FormatID:  formatID,
		PromptID:  promptID,
		Values:    values,
		Status:    ProjectStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendEvent 追加事件，维持环形缓冲语义（容量 MaxProjectEvents，先丢最旧）
func (p *Project) AppendEvent(ev TraceEvent) {
	p.Events = append(p.Events, ev)
	if over := len(p.Events) - MaxProjectEvents; over > 0 {
		p.Events = append(p.Events[:0:0], p.Events[over:]...)
	}
	p.UpdatedAt = time.Now()
}

// AppendSection 追加小节结果并推进进度
func (p *Project) AppendSection(res SectionResult, provider string) {
	if p.AIResult == nil {
		p.AIResult = &AIResult{}
	}
	p.AIResult.Sections = append(p.AIResult.Sections, res)
	if p.Progress.Current < p.Progress.Total {
		p.Progress.Current++
	}
	p.Progress.CurrentPath = res.Path
	p.Progress.Provider = provider
	p.Progress.UpdatedAt = time.Now()
	p.UpdatedAt = p.Progress.UpdatedAt
}

// StartRun 进入 generating 状态并重置上一次运行的痕迹
// 重试永远从第 1 小节重新开始，不存在部分续跑的契约
func (p *Project) StartRun(runID string, total int) {
	now := time.Now()
	p.Status = ProjectStatusGenerating
	p.RunID = runID
	p.Progress = Progress{Current: 0, Total: total, UpdatedAt: now}
	p.Events = nil
	p.AIResult = nil
	p.Artifacts = nil
	p.Error = ""
	p.UpdatedAt = now
}

// RequestCancel 请求取消，仅在 generating 状态下有效
func (p *Project) RequestCancel() bool {
	if p.Status != ProjectStatusGenerating {
		return false
	}
	p.Status = ProjectStatusCancelRequested
	p.UpdatedAt = time.Now()
	return true
}

// Finish 写入终态
func (p *Project) Finish(status ProjectStatus, errMsg string) {
	p.Status = status
	p.Error = errMsg
	p.UpdatedAt = time.Now()
}

// CanGenerate 判断是否允许触发新的生成运行
func (p *Project) CanGenerate() bool {
	return p.Status == ProjectStatusDraft || p.Status.IsTerminal()
}
