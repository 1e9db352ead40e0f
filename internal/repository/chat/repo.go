package chat

import (
	"context"
	"time"

	"taskagent/internal/model/chat"
)

// ConversationRepository 对话仓库接口
type ConversationRepository interface {
	Create(ctx context.Context, conv *chat.Conversation) error
	FindByID(ctx context.Context, id string) (*chat.Conversation, error)
	// SetTitleIfEmpty 仅在标题为空时写入，返回是否写入
	SetTitleIfEmpty(ctx context.Context, id, title string) (bool, error)
	Touch(ctx context.Context, id string, at time.Time) error
	// ListByUser 按更新时间倒序
	ListByUser(ctx context.Context, userID string, limit, offset int64) ([]*chat.Conversation, error)
}

// MessageRepository 消息仓库接口，只追加
type MessageRepository interface {
	Append(ctx context.Context, msg *chat.Message) error
	// FindRecent 返回最近 limit 条，按时间倒序
	FindRecent(ctx context.Context, conversationID string, limit int64) ([]*chat.Message, error)
	// ListByConversation 按时间正序分页
	ListByConversation(ctx context.Context, conversationID string, limit, offset int64) ([]*chat.Message, error)
	Count(ctx context.Context, conversationID string) (int64, error)
}
