package task

import (
	"context"

	"taskagent/internal/model/task"
)

// TaskRepository 任务仓库接口，所有查询都带 user_id 保证归属
type TaskRepository interface {
	Create(ctx context.Context, t *task.Task) error
	FindByID(ctx context.Context, id, userID string) (*task.Task, error)
	Update(ctx context.Context, t *task.Task) error
	Delete(ctx context.Context, id, userID string) error
	// List 按创建时间正序
	List(ctx context.Context, userID string, filter task.Filter) ([]*task.Task, error)
}
