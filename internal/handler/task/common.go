package task

import (
	"time"

	"github.com/gin-gonic/gin"

	"taskagent/internal/model/task"
	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/service"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// TaskInfo 任务信息 DTO
type TaskInfo struct {
	ID          string `json:"task_id"`               // 任务ID
	UserID      string `json:"user_id"`               // 用户ID
	Title       string `json:"title"`                 // 标题
	Description string `json:"description,omitempty"` // 描述
	Status      string `json:"status"`                // 状态：pending, completed
	CreatedAt   string `json:"created_at"`            // 创建时间
	UpdatedAt   string `json:"updated_at"`            // 更新时间
}

// toTaskInfo 将 Task 实体转换为 TaskInfo DTO
func toTaskInfo(t *task.Task) TaskInfo {
	return TaskInfo{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

// toTaskInfoList 将 Task 列表转换为 TaskInfo 列表
func toTaskInfoList(tasks []*task.Task) []TaskInfo {
	list := make([]TaskInfo, len(tasks))
	for i, t := range tasks {
		list[i] = toTaskInfo(t)
	}
	return list
}

// pathUser 读取并校验路径中的 user_id，失败时已写入响应
func pathUser(c *gin.Context) (string, bool) {
	userID := c.Param("user_id")
	if err := service.ValidateUserID(userID); err != nil {
		httputil.Error(c, err)
		return "", false
	}
	return userID, true
}
