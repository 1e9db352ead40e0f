package component

import (
	"context"
	"fmt"

	arkext "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"taskagent/internal/config"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultArkBaseURL  = "https://ark.cn-beijing.volces.com/api/v3"
	defaultArkModel    = "doubao-seed-1-6-flash-250615"
	defaultAzureAPIVer = "2024-06-01"
)

// NewChatModel 创建支持工具调用的 ChatModel
// 支持多种 Provider: openai, azure, ark
func NewChatModel(ctx context.Context, cfg *config.AIConfig) (model.ToolCallingChatModel, error) {
	switch cfg.Provider {
	case "openai", "":
		return newOpenAIChatModel(ctx, cfg, false)
	case "azure":
		return newOpenAIChatModel(ctx, cfg, true)
	case "ark":
		return newArkChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

// sampling 解析可选的采样参数，零值表示使用模型默认
type sampling struct {
	temperature *float32
	topP        *float32
	maxTokens   *int
}

func samplingFrom(opts config.AIOptionsConfig) sampling {
	var s sampling
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		s.temperature = &t
	}
	if opts.TopP > 0 {
		p := float32(opts.TopP)
		s.topP = &p
	}
	if opts.MaxTokens > 0 {
		n := opts.MaxTokens
		s.maxTokens = &n
	}
	return s
}

// newOpenAIChatModel 创建 OpenAI / Azure OpenAI ChatModel
func newOpenAIChatModel(ctx context.Context, cfg *config.AIConfig, azure bool) (model.ToolCallingChatModel, error) {
	s := samplingFrom(cfg.Options)
	modelCfg := &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		Temperature: s.temperature,
		TopP:        s.topP,
		MaxTokens:   s.maxTokens,
	}
	if modelCfg.Model == "" {
		modelCfg.Model = defaultOpenAIModel
	}
	if azure {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure provider requires ai.base_url")
		}
		modelCfg.ByAzure = true
		modelCfg.APIVersion = defaultAzureAPIVer
	}
	return openai.NewChatModel(ctx, modelCfg)
}

// newArkChatModel 创建 Ark ChatModel
func newArkChatModel(ctx context.Context, cfg *config.AIConfig) (model.ToolCallingChatModel, error) {
	s := samplingFrom(cfg.Options)
	modelCfg := &arkext.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: s.temperature,
		TopP:        s.topP,
		MaxTokens:   s.maxTokens,
	}
	if modelCfg.BaseURL == "" {
		modelCfg.BaseURL = defaultArkBaseURL
	}
	if modelCfg.Model == "" {
		modelCfg.Model = defaultArkModel
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		modelCfg.Timeout = &timeout
	}
	return arkext.NewChatModel(ctx, modelCfg)
}
