// Package upstream 诗歌代理使用的文本生成服务客户端
package upstream

import (
	"context"
	"fmt"

	"github.com/zhouzirui/poem-tavern/backend/internal/config"
	poemsvc "github.com/zhouzirui/poem-tavern/backend/internal/service/poem"
)

// New 根据 cfg.Provider 创建生成器
func New(ctx context.Context, cfg config.PoemConfig) (poemsvc.Generator, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%s provider is not configured", cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGemini(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case config.ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewArk(chatModel, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
