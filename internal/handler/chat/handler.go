package chat

import (
	"taskagent/internal/service"
)

// Handler 对话处理器
type Handler struct {
	chatService *service.ChatService
}

// NewHandler 创建对话处理器
func NewHandler(chatService *service.ChatService) *Handler {
	return &Handler{chatService: chatService}
}
