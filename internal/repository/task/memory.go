package task

import (
	"context"
	"sync"
	"time"

	"taskagent/internal/model/task"
	"taskagent/internal/repository"
)

// MemoryRepo 进程内任务仓库
type MemoryRepo struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
	order []string
}

var _ TaskRepository = (*MemoryRepo)(nil)

// NewMemoryRepo 创建进程内任务仓库
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tasks: make(map[string]*task.Task)}
}

// Create 创建任务
func (r *MemoryRepo) Create(_ context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; ok {
		return repository.ErrDuplicate
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	r.tasks[t.ID] = &cp
	r.order = append(r.order, t.ID)
	return nil
}

// FindByID 根据ID和用户ID查询
func (r *MemoryRepo) FindByID(_ context.Context, id, userID string) (*task.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// Update 更新任务
func (r *MemoryRepo) Update(_ context.Context, t *task.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tasks[t.ID]
	if !ok || cur.UserID != t.UserID {
		return repository.ErrNotFound
	}
	t.UpdatedAt = time.Now()
	cur.Title = t.Title
	cur.Description = t.Description
	cur.Status = t.Status
	cur.UpdatedAt = t.UpdatedAt
	return nil
}

// Delete 删除任务
func (r *MemoryRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.tasks, id)
	for i, tid := range r.order {
		if tid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// List 按创建顺序返回
func (r *MemoryRepo) List(_ context.Context, userID string, filter task.Filter) ([]*task.Task, error) {
	if filter == "" {
		filter = task.FilterAll
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*task.Task, 0)
	for _, id := range r.order {
		t := r.tasks[id]
		if t.UserID == userID && filter.Matches(t.Status) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
