// Package llm 提供文本生成提供商的接入与错误分类
package llm

import (
	"context"
	"fmt"
	"sync"

	"gicagen-api/internal/config"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 生成编排层对 LLM ChatModel 的最小依赖（port）
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
	FallbackFor(name string) string
}

// EinoFactory 管理多个 Eino ChatModel 客户端实例
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get 获取指定名称的 ChatModel，如果未指定则返回默认客户端
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	// 使用 Eino 的 OpenAI 适配器（gemini/mistral 均走 OpenAI 兼容端点）
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		MaxTokens:   &providerCfg.MaxTokens,
		Temperature: ptrFloat32(float32(providerCfg.Temperature)),
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Default 返回默认 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

// DefaultProvider 返回默认提供商名称
func (f *EinoFactory) DefaultProvider() string {
	return f.config.DefaultProvider
}

// FallbackFor 返回 fallback_chain 中紧跟给定提供商之后的备用提供商
// 链尾或未配置时返回空串，表示没有可用的备用提供商
func (f *EinoFactory) FallbackFor(name string) string {
	chain := f.config.FallbackChain
	for i, p := range chain {
		if p == name && i+1 < len(chain) {
			return chain[i+1]
		}
	}
	return ""
}

func ptrFloat32(f float32) *float32 {
	return &f
}
