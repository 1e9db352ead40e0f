package task

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskagent/internal/model/task"
	httputil "taskagent/internal/pkg/http"
)

// ListTasks 任务列表
// @Summary      任务列表
// @Tags         任务管理
// @Produce      json
// @Param        user_id  path      string  true   "用户ID"
// @Param        status   query     string  false  "过滤条件：pending, completed, all"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Router       /api/v1/{user_id}/tasks [get]
func (h *Handler) ListTasks(c *gin.Context) {
	userID, ok := pathUser(c)
	if !ok {
		return
	}

	filter, err := task.ParseFilter(c.Query("status"))
	if err != nil {
		httputil.BadRequest(c, "Invalid status filter", err)
		return
	}

	tasks, err := h.taskService.List(c.Request.Context(), userID, filter)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	httputil.OK(c, http.StatusOK, gin.H{
		"tasks": toTaskInfoList(tasks),
		"total": len(tasks),
	})
}
