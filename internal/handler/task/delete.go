package task

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "taskagent/internal/pkg/http"
)

// DeleteTask 删除任务
// @Summary      删除任务
// @Tags         任务管理
// @Produce      json
// @Param        user_id  path      string  true  "用户ID"
// @Param        task_id  path      string  true  "任务ID"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /api/v1/{user_id}/tasks/{task_id} [delete]
func (h *Handler) DeleteTask(c *gin.Context) {
	userID, ok := pathUser(c)
	if !ok {
		return
	}

	deleted, err := h.taskService.Delete(c.Request.Context(), userID, c.Param("task_id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}

	httputil.OK(c, http.StatusOK, gin.H{"task_id": deleted.ID})
}
