package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskagent/internal/ai/agent"
	httputil "taskagent/internal/pkg/http"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// ChatRequest 对话请求
type ChatRequest struct {
	Message        string `json:"message" binding:"required"` // 用户消息（必填）
	ConversationID string `json:"conversation_id,omitempty"`  // 对话ID，为空时新建对话
}

// ChatResponseData 对话响应数据
type ChatResponseData struct {
	ConversationID    string                 `json:"conversation_id"`     // 对话ID
	Response          string                 `json:"response"`            // 助手回复
	ToolCallsExecuted bool                   `json:"tool_calls_executed"` // 本轮是否执行了工具
	Error             bool                   `json:"error,omitempty"`     // 本轮是否降级为致歉回复
	ToolCalls         []agent.ToolCallRecord `json:"tool_calls"`          // 工具调用及结果
}

// Chat 发送一条消息
// @Summary      对话
// @Description  发送一条自然语言消息，助手会按需调用任务工具并返回回复
// @Tags         对话
// @Accept       json
// @Produce      json
// @Param        user_id  path      string       true  "用户ID"
// @Param        request  body      ChatRequest  true  "对话请求"
// @Success      200      {object}  map[string]interface{}  "{\"code\": 0, \"message\": \"success\", \"data\": {...}}"
// @Failure      400      {object}  ErrorResponse  "请求参数错误"
// @Failure      404      {object}  ErrorResponse  "对话不存在"
// @Failure      429      {object}  ErrorResponse  "请求过于频繁"
// @Failure      500      {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/{user_id}/chat [post]
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.chatService.Chat(c.Request.Context(), c.Param("user_id"), req.Message, req.ConversationID)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": ChatResponseData{
			ConversationID:    result.ConversationID,
			Response:          result.Response,
			ToolCallsExecuted: result.ToolCallsExecuted,
			Error:             result.Error,
			ToolCalls:         result.ToolCalls,
		},
	})
}
