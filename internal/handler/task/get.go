package task

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "taskagent/internal/pkg/http"
)

// GetTask 获取任务
// @Summary      获取任务
// @Tags         任务管理
// @Produce      json
// @Param        user_id  path      string  true  "用户ID"
// @Param        task_id  path      string  true  "任务ID"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /api/v1/{user_id}/tasks/{task_id} [get]
func (h *Handler) GetTask(c *gin.Context) {
	userID, ok := pathUser(c)
	if !ok {
		return
	}

	t, err := h.taskService.Get(c.Request.Context(), userID, c.Param("task_id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}

	httputil.OK(c, http.StatusOK, gin.H{"task": toTaskInfo(t)})
}
