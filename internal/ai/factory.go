package ai

import (
	"context"

	"github.com/rs/zerolog/log"

	"taskagent/internal/ai/component"
	"taskagent/internal/config"
)

// NewCompleter 按配置创建模型补全服务
// 未配置 API Key 时使用本地 MockCompleter
func NewCompleter(ctx context.Context, cfg *config.AIConfig) (Completer, error) {
	if cfg.APIKey == "" {
		log.Warn().Msg("AI api key not configured, using local mock completer")
		return NewMockCompleter(), nil
	}

	chatModel, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("initialized chat model")
	return NewEinoCompleter(chatModel), nil
}
