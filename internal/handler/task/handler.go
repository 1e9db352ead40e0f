package task

import (
	"taskagent/internal/service"
)

// Handler 任务处理器
type Handler struct {
	taskService *service.TaskService
}

// NewHandler 创建任务处理器
func NewHandler(taskService *service.TaskService) *Handler {
	return &Handler{taskService: taskService}
}
