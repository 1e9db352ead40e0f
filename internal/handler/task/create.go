package task

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/service"
)

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required"` // 标题（必填）
	Description string `json:"description,omitempty"`    // 描述（可选）
}

// CreateTask 创建任务
// @Summary      创建任务
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        user_id  path      string             true  "用户ID"
// @Param        request  body      CreateTaskRequest  true  "创建任务请求"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Router       /api/v1/{user_id}/tasks [post]
func (h *Handler) CreateTask(c *gin.Context) {
	userID, ok := pathUser(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "Invalid request body", err)
		return
	}

	created, err := h.taskService.Create(c.Request.Context(), userID, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		httputil.Error(c, err)
		return
	}

	httputil.OK(c, http.StatusCreated, gin.H{"task": toTaskInfo(created)})
}
