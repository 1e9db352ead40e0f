package agent

import (
	"context"

	"taskagent/internal/ai"
	"taskagent/internal/model/chat"
)

// DefaultContextLimit 构建上下文时默认取的消息条数
const DefaultContextLimit = 20

// Store 编排器依赖的会话与消息存储
type Store interface {
	CreateConversation(ctx context.Context, userID string) (*chat.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error)
	AppendMessage(ctx context.Context, msg *chat.Message) (string, error)
	// FetchRecent 返回最近 limit 条消息，时间倒序
	FetchRecent(ctx context.Context, conversationID string, limit int) ([]*chat.Message, error)
	SetTitleOnce(ctx context.Context, conversationID, title string) (bool, error)
}

// ContextAssembler 把最近的消息组装成按时间正序的模型输入
type ContextAssembler struct {
	store Store
	limit int
}

// NewContextAssembler 创建上下文组装器，limit <= 0 时使用默认值
func NewContextAssembler(store Store, limit int) *ContextAssembler {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	return &ContextAssembler{store: store, limit: limit}
}

// Limit 默认条数上限
func (a *ContextAssembler) Limit() int {
	return a.limit
}

// Build 取最近 limit 条消息并反转为正序
// 结果长度不超过 limit，是完整历史的后缀；limit <= 0 时使用组装器的默认值
func (a *ContextAssembler) Build(ctx context.Context, conversationID string, limit int) ([]ai.Message, error) {
	if limit <= 0 {
		limit = a.limit
	}
	recent, err := a.store.FetchRecent(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	if len(recent) > limit {
		recent = recent[:limit]
	}

	out := make([]ai.Message, len(recent))
	for i, msg := range recent {
		out[len(recent)-1-i] = toModelMessage(msg)
	}
	return out, nil
}

func toModelMessage(msg *chat.Message) ai.Message {
	m := ai.Message{Role: ai.Role(msg.Role), Content: msg.Content}
	if msg.Role == chat.RoleTool {
		m.ToolCallID = msg.ToolCallID
		m.ToolName = msg.ToolName
	}
	return m
}
