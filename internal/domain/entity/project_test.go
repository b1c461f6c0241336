package entity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   ProjectStatus
		terminal bool
	}{
		{ProjectStatusDraft, false},
		{ProjectStatusGenerating, false},
		{ProjectStatusCancelRequested, false},
		{ProjectStatusCompleted, true},
		{ProjectStatusCompletedWithIncidents, true},
		{ProjectStatusFailed, true},
		{ProjectStatusBlocked, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal(%q) = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestProject_AppendEvent_RingBuffer(t *testing.T) {
	p := NewProject("Tesis", "fmt_unap", "", nil)

	for i := 0; i < MaxProjectEvents+50; i++ {
		p.AppendEvent(NewTraceEvent(StepGenerateSection, EventStatusDone, fmt.Sprintf("evento %d", i)))
	}

	require.Len(t, p.Events, MaxProjectEvents)
	// 先丢最旧：前 50 个被淘汰，顺序保持
	assert.Equal(t, "evento 50", p.Events[0].Title)
	assert.Equal(t, fmt.Sprintf("evento %d", MaxProjectEvents+49), p.Events[MaxProjectEvents-1].Title)
}

func TestProject_AppendSection_ProgressMonotone(t *testing.T) {
	p := NewProject("Tesis", "fmt_unap", "", nil)
	p.StartRun("run_1", 2)

	p.AppendSection(SectionResult{SectionID: "sec-0001", Path: "A", Content: "x"}, "gemini")
	assert.Equal(t, 1, p.Progress.Current)
	assert.Equal(t, "A", p.Progress.CurrentPath)
	assert.Equal(t, "gemini", p.Progress.Provider)

	p.AppendSection(SectionResult{SectionID: "sec-0002", Path: "B", Content: "y"}, "gemini")
	assert.Equal(t, 2, p.Progress.Current)

	// current 永远不超过 total
	p.AppendSection(SectionResult{SectionID: "sec-0003", Path: "C", Content: "z"}, "mistral")
	assert.Equal(t, 2, p.Progress.Current)
	assert.Equal(t, 2, p.Progress.Total)
	require.NotNil(t, p.AIResult)
	assert.Len(t, p.AIResult.Sections, 3)
}

func TestProject_StartRun_ResetsPreviousRun(t *testing.T) {
	p := NewProject("Tesis", "fmt_unap", "prompt_1", nil)
	p.StartRun("run_1", 3)
	p.AppendEvent(NewTraceEvent(StepGenerateStart, EventStatusRunning, "inicio"))
	p.AppendSection(SectionResult{SectionID: "sec-0001", Path: "A", Content: "x"}, "gemini")
	p.Finish(ProjectStatusFailed, "fallo de red")
	p.Artifacts = []Artifact{{Type: ArtifactTypeDOCX, DownloadURL: "https://x/d.docx"}}

	p.StartRun("run_2", 5)

	assert.Equal(t, ProjectStatusGenerating, p.Status)
	assert.Equal(t, "run_2", p.RunID)
	assert.Equal(t, 0, p.Progress.Current)
	assert.Equal(t, 5, p.Progress.Total)
	assert.Empty(t, p.Events)
	assert.Nil(t, p.AIResult)
	assert.Nil(t, p.Artifacts)
	assert.Empty(t, p.Error)
}

func TestProject_RequestCancel(t *testing.T) {
	p := NewProject("Tesis", "fmt_unap", "", nil)

	// draft 不可取消
	assert.False(t, p.RequestCancel())
	assert.Equal(t, ProjectStatusDraft, p.Status)

	p.StartRun("run_1", 3)
	assert.True(t, p.RequestCancel())
	assert.Equal(t, ProjectStatusCancelRequested, p.Status)

	// 重复取消无效
	assert.False(t, p.RequestCancel())

	p.Finish(ProjectStatusCompleted, "")
	assert.False(t, p.RequestCancel())
}

func TestProject_CanGenerate(t *testing.T) {
	p := NewProject("Tesis", "fmt_unap", "", nil)
	assert.True(t, p.CanGenerate())

	p.StartRun("run_1", 3)
	assert.False(t, p.CanGenerate())

	p.Status = ProjectStatusCancelRequested
	assert.False(t, p.CanGenerate())

	for _, status := range []ProjectStatus{
		ProjectStatusCompleted,
		ProjectStatusCompletedWithIncidents,
		ProjectStatusFailed,
		ProjectStatusBlocked,
	} {
		p.Finish(status, "")
		assert.True(t, p.CanGenerate(), "status %s", status)
	}
}
