package task

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskagent/internal/model/task"
	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/service"
)

// UpdateTaskRequest 更新任务请求，省略的字段不修改
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"` // pending, completed
}

// UpdateTask 更新任务
// @Summary      更新任务
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        user_id  path      string             true  "用户ID"
// @Param        task_id  path      string             true  "任务ID"
// @Param        request  body      UpdateTaskRequest  true  "更新任务请求"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Router       /api/v1/{user_id}/tasks/{task_id} [put]
func (h *Handler) UpdateTask(c *gin.Context) {
	userID, ok := pathUser(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "Invalid request body", err)
		return
	}

	in := service.UpdateTaskInput{Title: req.Title, Description: req.Description}
	if req.Status != nil {
		status, err := task.ParseStatus(*req.Status)
		if err != nil {
			httputil.BadRequest(c, "Invalid status", err)
			return
		}
		in.Status = &status
	}

	updated, err := h.taskService.Update(c.Request.Context(), userID, c.Param("task_id"), in)
	if err != nil {
		httputil.Error(c, err)
		return
	}

	httputil.OK(c, http.StatusOK, gin.H{"task": toTaskInfo(updated)})
}
