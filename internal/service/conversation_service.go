package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"taskagent/internal/model/chat"
	"taskagent/internal/pkg/apperr"
	"taskagent/internal/pkg/id"
	"taskagent/internal/repository"
	chatrepo "taskagent/internal/repository/chat"
)

// ConversationService 对话与消息存储
// 编排器通过它创建对话、追加消息、读取最近消息、设置标题
type ConversationService struct {
	convs  chatrepo.ConversationRepository
	msgs   chatrepo.MessageRepository
	maxLen int
	now    func() time.Time
}

// NewConversationService 创建对话服务，maxLen 为 user/assistant 消息的最大字符数
func NewConversationService(convs chatrepo.ConversationRepository, msgs chatrepo.MessageRepository, maxLen int) *ConversationService {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	return &ConversationService{
		convs:  convs,
		msgs:   msgs,
		maxLen: maxLen,
		now:    time.Now,
	}
}

// CreateConversation 为用户创建新对话
func (s *ConversationService) CreateConversation(ctx context.Context, userID string) (*chat.Conversation, error) {
	conv := &chat.Conversation{
		ID:        id.New(),
		UserID:    userID,
		CreatedAt: s.now(),
	}
	if err := s.convs.Create(ctx, conv); err != nil {
		return nil, apperr.Internal("create conversation", err)
	}
	return conv, nil
}

// GetConversation 根据ID查询，不存在返回 NotFound
func (s *ConversationService) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	conv, err := s.convs.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("conversation %s not found", conversationID)
		}
		return nil, apperr.Internal("find conversation", err)
	}
	return conv, nil
}

// GetOwnedConversation 查询并校验归属，不属于该用户同样返回 NotFound
func (s *ConversationService) GetOwnedConversation(ctx context.Context, userID, conversationID string) (*chat.Conversation, error) {
	conv, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.OwnedBy(userID) {
		return nil, apperr.NotFound("conversation %s not found", conversationID)
	}
	return conv, nil
}

// AppendMessage 追加消息并返回消息ID
// user/assistant 消息超出长度时截断，tool 消息保留完整信封
func (s *ConversationService) AppendMessage(ctx context.Context, msg *chat.Message) (string, error) {
	if !msg.Role.IsValid() {
		return "", apperr.Validation("invalid message role %q", msg.Role)
	}
	if msg.Role != chat.RoleTool {
		msg.Content = truncate(msg.Content, s.maxLen)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	if err := s.msgs.Append(ctx, msg); err != nil {
		return "", apperr.Internal("append message", err)
	}
	if err := s.convs.Touch(ctx, msg.ConversationID, msg.Timestamp); err != nil {
		log.Warn().Err(err).Str("conversation_id", msg.ConversationID).Msg("failed to touch conversation")
	}
	return msg.ID, nil
}

// FetchRecent 最近 limit 条消息，时间倒序
func (s *ConversationService) FetchRecent(ctx context.Context, conversationID string, limit int) ([]*chat.Message, error) {
	if limit <= 0 {
		return []*chat.Message{}, nil
	}
	msgs, err := s.msgs.FindRecent(ctx, conversationID, int64(limit))
	if err != nil {
		return nil, apperr.Internal("fetch recent messages", err)
	}
	return msgs, nil
}

// CountMessages 对话中的消息数
func (s *ConversationService) CountMessages(ctx context.Context, conversationID string) (int64, error) {
	n, err := s.msgs.Count(ctx, conversationID)
	if err != nil {
		return 0, apperr.Internal("count messages", err)
	}
	return n, nil
}

// SetTitleOnce 标题为空时写入，已有标题时不覆盖
func (s *ConversationService) SetTitleOnce(ctx context.Context, conversationID, title string) (bool, error) {
	ok, err := s.convs.SetTitleIfEmpty(ctx, conversationID, title)
	if err != nil {
		return false, apperr.Internal("set conversation title", err)
	}
	return ok, nil
}

// ListConversations 用户的对话列表，最近更新在前
func (s *ConversationService) ListConversations(ctx context.Context, userID string, limit, offset int64) ([]*chat.Conversation, error) {
	limit, offset = normalizePage(limit, offset)
	convs, err := s.convs.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperr.Internal("list conversations", err)
	}
	return convs, nil
}

// History 对话消息，时间正序，校验归属
func (s *ConversationService) History(ctx context.Context, userID, conversationID string, limit, offset int64) ([]*chat.Message, error) {
	if _, err := s.GetOwnedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	msgs, err := s.msgs.ListByConversation(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("list messages of %s", conversationID), err)
	}
	return msgs, nil
}

func normalizePage(limit, offset int64) (int64, int64) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// truncate 按字符截断
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
