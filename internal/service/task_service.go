package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"taskagent/internal/model/task"
	"taskagent/internal/pkg/apperr"
	"taskagent/internal/pkg/id"
	"taskagent/internal/repository"
	taskrepo "taskagent/internal/repository/task"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 1000
)

// CreateTaskInput 创建任务参数
type CreateTaskInput struct {
	Title       string
	Description string
}

// UpdateTaskInput 更新任务参数，nil 表示不修改
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *task.Status
}

// IsEmpty 没有任何需要修改的字段
func (in UpdateTaskInput) IsEmpty() bool {
	return in.Title == nil && in.Description == nil && in.Status == nil
}

// TaskService 任务服务，工具与 REST 接口共用
type TaskService struct {
	repo taskrepo.TaskRepository
}

// NewTaskService 创建任务服务
func NewTaskService(repo taskrepo.TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

// Create 创建任务，初始状态 pending
func (s *TaskService) Create(ctx context.Context, userID string, in CreateTaskInput) (*task.Task, error) {
	title, err := cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}
	desc, err := cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}

	t := &task.Task{
		ID:          id.New(),
		UserID:      userID,
		Title:       title,
		Description: desc,
		Status:      task.StatusPending,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, dbError("create task", err)
	}
	return t, nil
}

// Get 查询任务
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*task.Task, error) {
	taskID, err := ValidateTaskID(taskID)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.FindByID(ctx, taskID, userID)
	if err != nil {
		return nil, taskError(taskID, "find task", err)
	}
	return t, nil
}

// Update 更新任务
func (s *TaskService) Update(ctx context.Context, userID, taskID string, in UpdateTaskInput) (*task.Task, error) {
	if in.IsEmpty() {
		return nil, apperr.Validation("nothing to update: provide title, description or status")
	}
	t, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if t.Title, err = cleanTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if t.Description, err = cleanDescription(*in.Description); err != nil {
			return nil, err
		}
	}
	if in.Status != nil {
		t.Status = *in.Status
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, taskError(t.ID, "update task", err)
	}
	return t, nil
}

// Delete 删除任务，返回被删除的任务
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) (*task.Task, error) {
	t, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, t.ID, userID); err != nil {
		return nil, taskError(t.ID, "delete task", err)
	}
	return t, nil
}

// List 列出任务
func (s *TaskService) List(ctx context.Context, userID string, filter task.Filter) ([]*task.Task, error) {
	tasks, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, dbError("list tasks", err)
	}
	return tasks, nil
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", apperr.Validation("task title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", apperr.Validation("task title exceeds %d characters", maxTitleLength)
	}
	return title, nil
}

func cleanDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > maxDescriptionLength {
		return "", apperr.Validation("task description exceeds %d characters", maxDescriptionLength)
	}
	return desc, nil
}

func taskError(taskID, op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("no task found with id %s", taskID)
	}
	return dbError(op, err)
}

func dbError(op string, err error) error {
	return apperr.Internal(op, err).WithCode(apperr.CodeDatabaseError)
}
