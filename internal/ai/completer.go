package ai

import (
	"context"

	"taskagent/internal/ai/tool"
)

// Role 模型消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message 发给模型的消息
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // 仅 assistant 消息
	ToolCallID string     // 仅 tool 消息
	ToolName   string     // 仅 tool 消息
}

// ToolCall 模型请求的一次工具调用，ID 在一次模型响应内唯一
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage Token 使用统计
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion 模型响应，Content 与 ToolCalls 只有一个非空
type Completion struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *Usage
}

// HasToolCalls 是否请求了工具调用
func (c *Completion) HasToolCalls() bool {
	return c != nil && len(c.ToolCalls) > 0
}

// Completer 模型补全服务
// tools 为空时模型只能返回文本
type Completer interface {
	Complete(ctx context.Context, messages []Message, tools []tool.Definition) (*Completion, error)
}
