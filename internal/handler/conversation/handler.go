package conversation

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"taskagent/internal/model/chat"
	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/service"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// Handler 对话记录处理器
type Handler struct {
	conversationService *service.ConversationService
}

// NewHandler 创建对话记录处理器
func NewHandler(conversationService *service.ConversationService) *Handler {
	return &Handler{conversationService: conversationService}
}

// ConversationInfo 对话信息 DTO
type ConversationInfo struct {
	ID        string `json:"conversation_id"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MessageInfo 消息信息 DTO
type MessageInfo struct {
	ID         string `json:"id"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func toConversationInfo(c *chat.Conversation) ConversationInfo {
	return ConversationInfo{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func toMessageInfo(m *chat.Message) MessageInfo {
	return MessageInfo{
		ID:         m.ID,
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
		Timestamp:  m.Timestamp.Format(time.RFC3339Nano),
	}
}

// page 解析 limit/offset 查询参数，非法值交给服务层归一化
func page(c *gin.Context) (int64, int64) {
	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)
	offset, _ := strconv.ParseInt(c.Query("offset"), 10, 64)
	return limit, offset
}
