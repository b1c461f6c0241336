// Package generation 实现文档生成编排
package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"gicagen-api/internal/application/outline"
	"gicagen-api/internal/config"
	"gicagen-api/internal/domain/entity"
	"gicagen-api/internal/domain/repository"
	"gicagen-api/internal/infrastructure/llm"
	einoobs "gicagen-api/internal/observability/eino"
	"gicagen-api/pkg/logger"
	"gicagen-api/pkg/metrics"
)

// FormatSource 获取格式定义的依赖端口
type FormatSource interface {
	GetDefinition(ctx context.Context, formatID string) (entity.FormatDefinition, error)
}

// RenderNotifier 渲染导出 webhook 的依赖端口
type RenderNotifier interface {
	TriggerRender(ctx context.Context, project *entity.Project) error
}

// Orchestrator 生成编排器
//
// 按编译后的大纲顺序逐小节生成正文：小节之间严格串行，
// 取消只在小节边界处生效，进行中的提供商调用允许跑完
type Orchestrator struct {
	projects  repository.ProjectRepository
	prompts   repository.PromptRepository
	formats   FormatSource
	models    llm.ChatModelFactory
	compiler  *outline.Compiler
	renderer  *Renderer
	sanitizer *Sanitizer
	notifier  RenderNotifier
	cfg       config.GenerationConfig
}

// NewOrchestrator 创建生成编排器
func NewOrchestrator(
	projects repository.ProjectRepository,
	prompts repository.PromptRepository,
	formats FormatSource,
	models llm.ChatModelFactory,
	notifier RenderNotifier,
	cfg config.GenerationConfig,
) *Orchestrator {
	return &Orchestrator{
		projects:  projects,
		prompts:   prompts,
		formats:   formats,
		models:    models,
		compiler:  outline.NewCompiler(),
		renderer:  NewRenderer(),
		sanitizer: NewSanitizer(),
		notifier:  notifier,
		cfg:       cfg,
	}
}

// sectionOutcome 单个小节的生成结果
type sectionOutcome struct {
	content  string
	provider string
	err      error
	errClass llm.ErrorClass
}

// Run 执行一次完整的生成运行
//
// 运行期间编排器持有项目的工作副本，每处理完一个小节写回一次存储，
// 写回时同时探测 API 层是否已请求取消
func (o *Orchestrator) Run(ctx context.Context, projectID, runID string) error {
	ctx = logger.WithContext(ctx, logger.ProjectIDKey, projectID)
	ctx = logger.WithContext(ctx, logger.RunIDKey, runID)

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()
	started := time.Now()

	work, err := o.projects.GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", projectID, err)
	}
	if work.Status == entity.ProjectStatusCancelRequested {
		return o.finalize(ctx, work, entity.ProjectStatusFailed, "cancelado por el usuario", started)
	}
	if work.Status != entity.ProjectStatusGenerating {
		logger.Warn(ctx, "run skipped: project not in generating state", "status", work.Status)
		return nil
	}

	work.AppendEvent(entity.NewTraceEvent(entity.StepGenerateStart, entity.EventStatusRunning, "Generacion iniciada").
		WithMeta(map[string]any{"run_id": runID}))

	prompt, err := o.prompts.GetByID(ctx, work.PromptID)
	if err != nil {
		work.AppendEvent(entity.NewTraceEvent(entity.StepGenerateStart, entity.EventStatusError, "Plantilla de prompt no disponible").
			WithDetail(err.Error()))
		return o.finalize(ctx, work, entity.ProjectStatusFailed, "plantilla de prompt no disponible", started)
	}

	definition, err := o.formats.GetDefinition(ctx, work.FormatID)
	if err != nil {
		work.AppendEvent(entity.NewTraceEvent(entity.StepFormatSectionIndex, entity.EventStatusError, "Formato no disponible").
			WithDetail(err.Error()))
		return o.finalize(ctx, work, entity.ProjectStatusFailed, "formato no disponible", started)
	}

	index := o.compiler.Compile(definition)
	if len(index) == 0 {
		// 定义没有产出可生成小节时退化为单个通用小节
		index = []entity.SectionIndexEntry{{
			SectionID: "sec-0001",
			Path:      "Contenido",
			Title:     "Contenido",
			Kind:      entity.NodeKindChapter,
			Level:     1,
		}}
	}
	metrics.OutlineSectionCount.WithLabelValues(work.FormatID).Observe(float64(len(index)))
	work.AppendEvent(entity.NewTraceEvent(entity.StepFormatSectionIndex, entity.EventStatusDone, "Indice de secciones compilado").
		WithMeta(map[string]any{"sections": len(index)}))

	// Total 在此固定，运行期间不再变化
	work.Progress = entity.Progress{Current: 0, Total: len(index), UpdatedAt: time.Now()}

	values := make(map[string]string, len(work.Values)+1)
	for k, v := range work.Values {
		values[k] = v
	}
	if values["title"] == "" {
		// 封面永远不该显示字面占位符
		values["title"] = work.Title
	}

	basePrompt, missing := o.renderer.Render(prompt.Template, values)
	renderEvent := entity.NewTraceEvent(entity.StepPromptRender, entity.EventStatusDone, "Prompt final armado").
		WithDetail("Se combinaron plantilla y variables del proyecto.").
		WithPreview(map[string]string{"prompt": basePrompt})
	if len(missing) > 0 {
		renderEvent = renderEvent.WithMeta(map[string]any{"missing_variables": missing})
	}
	work.AppendEvent(renderEvent)

	if cancelled, perr := o.persist(ctx, work); perr != nil {
		return o.finalize(ctx, work, entity.ProjectStatusFailed, "error de persistencia", started)
	} else if cancelled {
		return o.finishRun(ctx, work, 0, 0, 0, true, started)
	}

	okCount, failCount, authFailures := 0, 0, 0

	for i, section := range index {
		work.AppendEvent(entity.NewTraceEvent(entity.StepGenerateSection, entity.EventStatusRunning,
			fmt.Sprintf("Generando seccion %d/%d", i+1, len(index))).
			WithMeta(map[string]any{"section_id": section.SectionID, "path": section.Path}))

		outcome := o.generateSection(ctx, work, section, basePrompt, values)

		var result entity.SectionResult
		switch {
		case outcome.err != nil:
			failCount++
			if outcome.errClass == llm.ClassAuth {
				authFailures++
			}
			metrics.GenerationSectionsTotal.WithLabelValues("failed").Inc()
			work.AppendEvent(entity.NewTraceEvent(entity.StepGenerateSection, entity.EventStatusError,
				fmt.Sprintf("Seccion %d/%d fallida", i+1, len(index))).
				WithDetail(outcome.err.Error()).
				WithMeta(map[string]any{"section_id": section.SectionID, "path": section.Path, "class": string(outcome.errClass)}))
			result = entity.SectionResult{SectionID: section.SectionID, Path: section.Path}
		default:
			clean := o.sanitizer.Sanitize(outcome.content, section.Path)
			if clean == "" {
				metrics.GenerationSectionsTotal.WithLabelValues("skipped").Inc()
			} else {
				metrics.GenerationSectionsTotal.WithLabelValues("ok").Inc()
			}
			okCount++
			work.AppendEvent(entity.NewTraceEvent(entity.StepGenerateSection, entity.EventStatusDone,
				fmt.Sprintf("Seccion %d/%d lista", i+1, len(index))).
				WithMeta(map[string]any{"section_id": section.SectionID, "provider": outcome.provider}).
				WithPreview(map[string]string{"response": clean}))
			result = entity.SectionResult{SectionID: section.SectionID, Path: section.Path, Content: clean}
		}

		work.AppendSection(result, outcome.provider)

		cancelled, perr := o.persist(ctx, work)
		if perr != nil {
			return o.finalize(ctx, work, entity.ProjectStatusFailed, "error de persistencia", started)
		}
		if cancelled {
			// 取消在小节边界生效，剩余小节不再尝试
			return o.finishRun(ctx, work, okCount, failCount, authFailures, true, started)
		}

		if i < len(index)-1 && o.cfg.SectionDelay > 0 {
			if !sleepCtx(ctx, o.cfg.SectionDelay) {
				return o.finishRun(ctx, work, okCount, failCount, authFailures, true, started)
			}
		}
	}

	return o.finishRun(ctx, work, okCount, failCount, authFailures, false, started)
}

// generateSection 生成单个小节，配额/认证错误时最多向备用提供商重试一次
// 单小节内没有指数退避循环：快速失败，让整个运行带着部分结果收尾
func (o *Orchestrator) generateSection(ctx context.Context, work *entity.Project, section entity.SectionIndexEntry, basePrompt string, values map[string]string) sectionOutcome {
	hints := ""
	if len(section.Hints) > 0 {
		hints = section.Hints[0]
		for _, h := range section.Hints[1:] {
			hints += "\n" + h
		}
	}
	prompt := o.renderer.BuildSectionPrompt(basePrompt, section.Path, section.SectionID, hints, values)

	primary := work.Progress.Provider
	if primary == "" {
		primary = o.primaryProvider(ctx)
	}

	content, err := o.callProvider(ctx, primary, prompt)
	if err == nil {
		return sectionOutcome{content: content, provider: primary}
	}

	class := llm.Classify(err)
	if !o.cfg.FallbackEnabled || !class.TriggersFallback() {
		return sectionOutcome{err: err, errClass: class, provider: primary}
	}

	fallback := o.models.FallbackFor(primary)
	if fallback == "" {
		return sectionOutcome{err: err, errClass: class, provider: primary}
	}

	if class == llm.ClassExhausted || class == llm.ClassRateLimited {
		work.AppendEvent(entity.NewTraceEvent(entity.StepProviderQuota, entity.EventStatusWarn, "Cuota del proveedor agotada").
			WithDetail(err.Error()).
			WithMeta(map[string]any{"provider": primary, "section_id": section.SectionID}))
	}
	work.AppendEvent(entity.NewTraceEvent(entity.StepProviderFallback, entity.EventStatusWarn,
		fmt.Sprintf("Cambio a proveedor de respaldo: %s", fallback)).
		WithMeta(map[string]any{"from": primary, "to": fallback, "section_id": section.SectionID, "class": string(class)}))
	metrics.LLMFallbackTotal.WithLabelValues(primary, fallback, string(class)).Inc()

	content, ferr := o.callProvider(ctx, fallback, prompt)
	if ferr == nil {
		return sectionOutcome{content: content, provider: fallback}
	}

	fclass := llm.Classify(ferr)
	// 两个提供商都是认证错误时保持 AUTH 分类，供 blocked 终态判定
	if class == llm.ClassAuth && fclass != llm.ClassAuth {
		fclass = llm.ClassGeneric
	}
	return sectionOutcome{err: ferr, errClass: fclass, provider: fallback}
}

// callProvider 调用指定提供商生成文本
func (o *Orchestrator) callProvider(ctx context.Context, name, prompt string) (string, error) {
	chatModel, err := o.models.Get(ctx, name)
	if err != nil {
		return "", err
	}
	// 让全局 Eino callback 能按提供商维度记录指标
	ctx = einoobs.WithProvider(ctx, name)
	msg, err := chatModel.Generate(ctx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// primaryProvider 解析本次运行的首选提供商
func (o *Orchestrator) primaryProvider(ctx context.Context) string {
	// 工厂未配置默认提供商时让 Get("") 自行解析
	type defaulter interface{ DefaultProvider() string }
	if d, ok := o.models.(defaulter); ok {
		return d.DefaultProvider()
	}
	return ""
}

// persist 将工作副本写回存储，返回 API 层是否已请求取消
func (o *Orchestrator) persist(ctx context.Context, work *entity.Project) (cancelled bool, err error) {
	stored, err := o.projects.Mutate(ctx, work.ID, func(p *entity.Project) error {
		p.Progress = work.Progress
		p.Events = work.Events
		p.AIResult = work.AIResult
		p.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		logger.Error(ctx, "failed to persist run state", err)
		return false, err
	}
	return stored.Status == entity.ProjectStatusCancelRequested, nil
}

// finishRun 结算终态并触发渲染导出
func (o *Orchestrator) finishRun(ctx context.Context, work *entity.Project, okCount, failCount, authFailures int, cancelled bool, started time.Time) error {
	var status entity.ProjectStatus
	var errMsg string

	switch {
	case cancelled && okCount > 0:
		status = entity.ProjectStatusCompletedWithIncidents
	case cancelled:
		status = entity.ProjectStatusFailed
		errMsg = "cancelado por el usuario"
	case failCount == 0:
		status = entity.ProjectStatusCompleted
	case okCount > 0:
		status = entity.ProjectStatusCompletedWithIncidents
	case authFailures == failCount:
		// 全部失败且全部是凭证问题：结构性故障，重试无意义
		status = entity.ProjectStatusBlocked
		errMsg = "credenciales del proveedor invalidas o sin permisos"
	default:
		status = entity.ProjectStatusFailed
		errMsg = "los proveedores de texto no produjeron ninguna seccion"
	}

	doneEvent := entity.NewTraceEvent(entity.StepGenerateDone, entity.EventStatusDone, "Generacion finalizada").
		WithMeta(map[string]any{"ok": okCount, "failed": failCount, "cancelled": cancelled, "status": string(status)})
	if status == entity.ProjectStatusFailed || status == entity.ProjectStatusBlocked {
		doneEvent.Status = entity.EventStatusError
	}
	work.AppendEvent(doneEvent)

	if err := o.finalize(ctx, work, status, errMsg, started); err != nil {
		return err
	}

	if o.notifier != nil && (status == entity.ProjectStatusCompleted || status == entity.ProjectStatusCompletedWithIncidents) {
		if err := o.notifier.TriggerRender(ctx, work); err != nil {
			// 渲染导出失败不改变生成终态，只留告警事件
			logger.Warn(ctx, "render webhook trigger failed", "error", err.Error())
			_, _ = o.projects.Mutate(ctx, work.ID, func(p *entity.Project) error {
				p.AppendEvent(entity.NewTraceEvent(entity.StepWebhookTrigger, entity.EventStatusWarn, "No se pudo iniciar la exportacion").
					WithDetail(err.Error()))
				return nil
			})
		}
	}
	return nil
}

// finalize 把终态与运行痕迹写回存储
func (o *Orchestrator) finalize(ctx context.Context, work *entity.Project, status entity.ProjectStatus, errMsg string, started time.Time) error {
	metrics.GenerationRunsTotal.WithLabelValues("queue", string(status)).Inc()
	metrics.GenerationRunDuration.WithLabelValues(string(status)).Observe(time.Since(started).Seconds())

	_, err := o.projects.Mutate(ctx, work.ID, func(p *entity.Project) error {
		p.Progress = work.Progress
		p.Events = work.Events
		p.AIResult = work.AIResult
		p.Finish(status, errMsg)
		return nil
	})
	if err != nil {
		logger.Error(ctx, "failed to finalize run", err, "status", status)
		return err
	}
	logger.Info(ctx, "generation run finished", "status", status, "duration", time.Since(started).String())
	return nil
}

// sleepCtx 可取消的小节间隔等待，返回 false 表示上下文已取消
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
