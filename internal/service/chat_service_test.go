package service

import (
	"context"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"taskagent/internal/ai"
	"taskagent/internal/ai/agent"
	"taskagent/internal/ai/tool"
	"taskagent/internal/config"
	"taskagent/internal/model/task"
	"taskagent/internal/pkg/apperr"
	chatrepo "taskagent/internal/repository/chat"
	taskrepo "taskagent/internal/repository/task"
)

func newChatService() (*ChatService, *TaskService) {
	convs := NewConversationService(chatrepo.NewMemoryConversationRepo(), chatrepo.NewMemoryMessageRepo(), 0)
	tasks := NewTaskService(taskrepo.NewMemoryRepo())
	reg := tool.NewRegistry()
	if err := RegisterTaskTools(reg, tasks); err != nil {
		panic(err)
	}
	o := agent.NewOrchestrator(convs, ai.NewMockCompleter(), reg, config.AgentConfig{})
	return NewChatService(o, 100), tasks
}

func TestChatService(t *testing.T) {
	ctx := context.Background()

	Convey("校验失败在编排前返回", t, func() {
		svc, _ := newChatService()

		_, err := svc.Chat(ctx, "", "hi", "")
		So(apperr.IsKind(err, apperr.KindValidation), ShouldBeTrue)

		_, err = svc.Chat(ctx, "u1", " \x00 ", "")
		So(apperr.IsKind(err, apperr.KindValidation), ShouldBeTrue)

		_, err = svc.Chat(ctx, "u1", strings.Repeat("x", 101), "")
		So(apperr.IsKind(err, apperr.KindValidation), ShouldBeTrue)

		_, err = svc.Chat(ctx, "u1", "hi", "not-a-uuid")
		So(apperr.IsKind(err, apperr.KindValidation), ShouldBeTrue)
	})

	Convey("多轮对话延续同一会话", t, func() {
		svc, tasks := newChatService()

		first, err := svc.Chat(ctx, "u1", "Add a task to water plants", "")
		So(err, ShouldBeNil)
		So(first.ToolCallsExecuted, ShouldBeTrue)

		second, err := svc.Chat(ctx, "u1", "Show my tasks", strings.ToUpper(first.ConversationID))
		So(err, ShouldBeNil)
		So(second.ConversationID, ShouldEqual, first.ConversationID)
		So(second.Response, ShouldContainSubstring, "water plants")

		list, _ := tasks.List(ctx, "u1", task.FilterAll)
		So(list, ShouldHaveLength, 1)
	})
}
