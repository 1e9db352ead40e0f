package service

import (
	"context"
	"fmt"

	"taskagent/internal/ai/tool"
	"taskagent/internal/model/task"
	"taskagent/internal/pkg/apperr"
	"taskagent/internal/pkg/ctxutil"
)

// 任务工具名
const (
	ToolCreateTask = "create_task"
	ToolUpdateTask = "update_task"
	ToolDeleteTask = "delete_task"
	ToolListTasks  = "list_tasks"
)

// maxListedTasks list_tasks 单次返回的任务上限
const maxListedTasks = 100

// RegisterTaskTools 把任务操作注册为模型可调用的工具
// 当前用户从 context 中读取，模型无法操作其他用户的任务
func RegisterTaskTools(reg *tool.Registry, tasks *TaskService) error {
	t := &taskTools{tasks: tasks}

	if err := reg.Register(ToolCreateTask,
		"Create a new task for the user.",
		tool.Params{
			"title":       {Type: "string", Desc: "Short title of the task", Required: true},
			"description": {Type: "string", Desc: "Optional longer description"},
		}, t.create); err != nil {
		return err
	}

	if err := reg.Register(ToolUpdateTask,
		"Update the title, description or status of an existing task.",
		tool.Params{
			"task_id":     {Type: "string", Desc: "ID of the task to update", Required: true},
			"title":       {Type: "string", Desc: "New title"},
			"description": {Type: "string", Desc: "New description"},
			"status":      {Type: "string", Desc: "New status", Enum: []string{string(task.StatusPending), string(task.StatusCompleted)}},
		}, t.update); err != nil {
		return err
	}

	if err := reg.Register(ToolDeleteTask,
		"Delete a task permanently.",
		tool.Params{
			"task_id": {Type: "string", Desc: "ID of the task to delete", Required: true},
		}, t.delete); err != nil {
		return err
	}

	return reg.Register(ToolListTasks,
		"List the user's tasks, optionally filtered by status.",
		tool.Params{
			"status": {Type: "string", Desc: "Filter by status", Enum: []string{
				string(task.FilterPending), string(task.FilterCompleted), string(task.FilterAll),
			}},
			"user_id": {Type: "string", Desc: "Ignored; tasks always belong to the current user"},
		}, t.list)
}

type taskTools struct {
	tasks *TaskService
}

func (t *taskTools) create(ctx context.Context, args map[string]any) (*tool.Envelope, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	created, err := t.tasks.Create(ctx, userID, CreateTaskInput{
		Title:       stringArg(args, "title"),
		Description: stringArg(args, "description"),
	})
	if err != nil {
		return failFrom(err)
	}
	return tool.OK(fmt.Sprintf("Task '%s' created successfully", created.Title), taskData(created)), nil
}

func (t *taskTools) update(ctx context.Context, args map[string]any) (*tool.Envelope, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	var in UpdateTaskInput
	if v, ok := args["title"].(string); ok {
		in.Title = &v
	}
	if v, ok := args["description"].(string); ok {
		in.Description = &v
	}
	if v, ok := args["status"].(string); ok {
		status, err := task.ParseStatus(v)
		if err != nil {
			return tool.Fail(apperr.CodeInvalidInput, "Invalid task status.", err.Error()), nil
		}
		in.Status = &status
	}

	updated, err := t.tasks.Update(ctx, userID, stringArg(args, "task_id"), in)
	if err != nil {
		return failFrom(err)
	}

	msg := fmt.Sprintf("Task '%s' updated successfully", updated.Title)
	if in.Status != nil && *in.Status == task.StatusCompleted {
		msg = fmt.Sprintf("Task '%s' marked as completed successfully", updated.Title)
	}
	return tool.OK(msg, taskData(updated)), nil
}

func (t *taskTools) delete(ctx context.Context, args map[string]any) (*tool.Envelope, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	deleted, err := t.tasks.Delete(ctx, userID, stringArg(args, "task_id"))
	if err != nil {
		return failFrom(err)
	}
	return tool.OK(fmt.Sprintf("Task '%s' deleted successfully", deleted.Title), map[string]any{
		"task_id": deleted.ID,
		"title":   deleted.Title,
	}), nil
}

func (t *taskTools) list(ctx context.Context, args map[string]any) (*tool.Envelope, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	filter, err := task.ParseFilter(stringArg(args, "status"))
	if err != nil {
		return tool.Fail(apperr.CodeInvalidInput, "Invalid status filter.", err.Error()), nil
	}

	tasks, err := t.tasks.List(ctx, userID, filter)
	if err != nil {
		return failFrom(err)
	}

	total := len(tasks)
	if total > maxListedTasks {
		tasks = tasks[:maxListedTasks]
	}
	items := make([]any, 0, len(tasks))
	for _, tk := range tasks {
		items = append(items, taskData(tk))
	}

	msg := fmt.Sprintf("Found %d task(s)", total)
	if total == 0 {
		msg = "No tasks found"
	}
	return tool.OK(msg, map[string]any{
		"tasks":         items,
		"count":         total,
		"status_filter": string(filter),
	}), nil
}

func currentUser(ctx context.Context) (string, error) {
	userID, ok := ctxutil.GetUserID(ctx)
	if !ok {
		return "", apperr.Validation("no user bound to the current turn")
	}
	return userID, nil
}

// failFrom 把可预期的业务错误转成带提示的失败信封，其余交给 Wrap
func failFrom(err error) (*tool.Envelope, error) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return tool.Fail(apperr.CodeResourceNotFound,
			"I couldn't find that task. Please check the task ID.", err.Error()), nil
	case apperr.KindValidation:
		appErr, _ := apperr.As(err)
		return tool.Fail(apperr.CodeInvalidInput, appErr.Message, err.Error()), nil
	}
	return nil, err
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func taskData(t *task.Task) map[string]any {
	data := map[string]any{
		"task_id": t.ID,
		"title":   t.Title,
		"status":  string(t.Status),
	}
	if t.Description != "" {
		data["description"] = t.Description
	}
	return data
}
