package service

import (
	"context"

	"taskagent/internal/ai/agent"
)

// ChatService 对话服务
// 负责入参校验，校验通过后交给编排器执行一轮对话
type ChatService struct {
	orchestrator *agent.Orchestrator
	maxLen       int
}

// NewChatService 创建对话服务
func NewChatService(orchestrator *agent.Orchestrator, maxLen int) *ChatService {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	return &ChatService{orchestrator: orchestrator, maxLen: maxLen}
}

// Chat 处理一条用户消息
// 校验失败返回 ValidationError，会话不存在返回 NotFoundError，其余故障体现在结果的 Error 字段
func (s *ChatService) Chat(ctx context.Context, userID, message, conversationID string) (*agent.TurnResult, error) {
	in, err := ValidateTurnInput(agent.TurnInput{
		UserID:         userID,
		Message:        message,
		ConversationID: conversationID,
	}, s.maxLen)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.Run(ctx, in)
}

// ValidateTurnInput 校验并规范化一轮对话的输入
func ValidateTurnInput(in agent.TurnInput, maxLen int) (agent.TurnInput, error) {
	if err := ValidateUserID(in.UserID); err != nil {
		return in, err
	}
	msg, err := SanitizeMessage(in.Message, maxLen)
	if err != nil {
		return in, err
	}
	convID, err := NormalizeConversationID(in.ConversationID)
	if err != nil {
		return in, err
	}
	return agent.TurnInput{UserID: in.UserID, Message: msg, ConversationID: convID}, nil
}
