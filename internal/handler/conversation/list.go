package conversation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/service"
)

// ListConversations 对话列表，最近更新在前
// @Summary      对话列表
// @Tags         对话
// @Produce      json
// @Param        user_id  path      string  true   "用户ID"
// @Param        limit    query     int     false  "每页条数，默认50，最大200"
// @Param        offset   query     int     false  "偏移量"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Router       /api/v1/{user_id}/conversations [get]
func (h *Handler) ListConversations(c *gin.Context) {
	userID := c.Param("user_id")
	if err := service.ValidateUserID(userID); err != nil {
		httputil.Error(c, err)
		return
	}

	limit, offset := page(c)
	convs, err := h.conversationService.ListConversations(c.Request.Context(), userID, limit, offset)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	list := make([]ConversationInfo, len(convs))
	for i, conv := range convs {
		list[i] = toConversationInfo(conv)
	}
	httputil.OK(c, http.StatusOK, gin.H{
		"conversations": list,
		"total":         len(list),
	})
}
