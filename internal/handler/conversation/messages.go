package conversation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/service"
)

// ListMessages 对话消息，时间正序
// @Summary      对话消息
// @Tags         对话
// @Produce      json
// @Param        user_id          path      string  true   "用户ID"
// @Param        conversation_id  path      string  true   "对话ID"
// @Param        limit            query     int     false  "每页条数，默认50，最大200"
// @Param        offset           query     int     false  "偏移量"
// @Success      200              {object}  map[string]interface{}
// @Failure      400              {object}  ErrorResponse
// @Failure      404              {object}  ErrorResponse
// @Router       /api/v1/{user_id}/conversations/{conversation_id}/messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	userID := c.Param("user_id")
	if err := service.ValidateUserID(userID); err != nil {
		httputil.Error(c, err)
		return
	}
	convID, err := service.NormalizeConversationID(c.Param("conversation_id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	if convID == "" {
		httputil.BadRequest(c, "conversation_id is required", nil)
		return
	}

	limit, offset := page(c)
	msgs, err := h.conversationService.History(c.Request.Context(), userID, convID, limit, offset)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	list := make([]MessageInfo, len(msgs))
	for i, m := range msgs {
		list[i] = toMessageInfo(m)
	}
	httputil.OK(c, http.StatusOK, gin.H{
		"conversation_id": convID,
		"messages":        list,
		"total":           len(list),
	})
}
