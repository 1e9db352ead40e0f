package agent_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"taskagent/internal/ai"
	"taskagent/internal/ai/agent"
	"taskagent/internal/ai/tool"
	"taskagent/internal/config"
	"taskagent/internal/model/chat"
	"taskagent/internal/model/task"
	"taskagent/internal/pkg/apperr"
	"taskagent/internal/pkg/id"
	"taskagent/internal/pkg/perf"
	chatrepo "taskagent/internal/repository/chat"
	taskrepo "taskagent/internal/repository/task"
	"taskagent/internal/service"
)

type reply func(messages []ai.Message, tools []tool.Definition) (*ai.Completion, error)

// scripted 按顺序返回预设的模型响应，并记录每次调用的输入
type scripted struct {
	mu      sync.Mutex
	replies []reply
	calls   [][]ai.Message
	tools   [][]tool.Definition
	ctxErrs []error
}

func (s *scripted) Complete(ctx context.Context, messages []ai.Message, tools []tool.Definition) (*ai.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, append([]ai.Message(nil), messages...))
	s.tools = append(s.tools, tools)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if len(s.replies) == 0 {
		return &ai.Completion{Content: "ok"}, nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r(messages, tools)
}

func text(content string) reply {
	return func([]ai.Message, []tool.Definition) (*ai.Completion, error) {
		return &ai.Completion{Content: content}, nil
	}
}

func calls(cs ...ai.ToolCall) reply {
	return func([]ai.Message, []tool.Definition) (*ai.Completion, error) {
		return &ai.Completion{ToolCalls: cs}, nil
	}
}

type fixture struct {
	convs *service.ConversationService
	tasks *service.TaskService
	reg   *tool.Registry
}

func newFixture() *fixture {
	f := &fixture{
		convs: service.NewConversationService(chatrepo.NewMemoryConversationRepo(), chatrepo.NewMemoryMessageRepo(), 0),
		tasks: service.NewTaskService(taskrepo.NewMemoryRepo()),
		reg:   tool.NewRegistry(),
	}
	if err := service.RegisterTaskTools(f.reg, f.tasks); err != nil {
		panic(err)
	}
	return f
}

func (f *fixture) orchestrator(c ai.Completer, opts ...agent.Option) *agent.Orchestrator {
	return agent.NewOrchestrator(f.convs, c, f.reg, config.AgentConfig{ContextLimit: 20}, opts...)
}

func (f *fixture) history(userID, convID string) []*chat.Message {
	msgs, err := f.convs.History(context.Background(), userID, convID, 200, 0)
	So(err, ShouldBeNil)
	return msgs
}

func roles(msgs []*chat.Message) []chat.Role {
	out := make([]chat.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestOrchestratorScenarios(t *testing.T) {
	ctx := context.Background()

	Convey("新对话创建任务，持久化顺序为 user, tool, assistant", t, func() {
		f := newFixture()
		o := f.orchestrator(ai.NewMockCompleter())

		res, err := o.Run(ctx, agent.TurnInput{UserID: "u1", Message: "Add a task to buy groceries"})
		So(err, ShouldBeNil)
		So(res.Error, ShouldBeFalse)
		So(res.ToolCallsExecuted, ShouldBeTrue)
		So(res.Response, ShouldContainSubstring, "groceries")
		So(res.Response, ShouldContainSubstring, "successfully")
		So(res.ToolCalls, ShouldHaveLength, 1)
		So(res.ToolCalls[0].Result.Success, ShouldBeTrue)

		msgs := f.history("u1", res.ConversationID)
		So(roles(msgs), ShouldResemble, []chat.Role{chat.RoleUser, chat.RoleTool, chat.RoleAssistant})
		So(msgs[1].ToolName, ShouldEqual, "create_task")
		So(msgs[1].ToolCallID, ShouldEqual, res.ToolCalls[0].ID)

		tasks, err := f.tasks.List(ctx, "u1", task.FilterAll)
		So(err, ShouldBeNil)
		So(tasks, ShouldHaveLength, 1)
		So(tasks[0].Title, ShouldEqual, "buy groceries")

		conv, err := f.convs.GetConversation(ctx, res.ConversationID)
		So(err, ShouldBeNil)
		So(conv.Title, ShouldEqual, "Add a task to buy groceries")
	})

	Convey("长对话的上下文受条数限制且包含最新消息", t, func() {
		f := newFixture()
		conv, err := f.convs.CreateConversation(ctx, "u1")
		So(err, ShouldBeNil)

		base := time.Now().Add(-time.Hour)
		for i := 0; i < 25; i++ {
			for j, role := range []chat.Role{chat.RoleUser, chat.RoleAssistant} {
				_, err := f.convs.AppendMessage(ctx, &chat.Message{
					ConversationID: conv.ID,
					Role:           role,
					Content:        fmt.Sprintf("%s-%d", role, i),
					Timestamp:      base.Add(time.Duration(2*i+j) * time.Second),
				})
				So(err, ShouldBeNil)
			}
		}

		c := &scripted{replies: []reply{text("noted")}}
		res, err := f.orchestrator(c).Run(ctx, agent.TurnInput{UserID: "u1", Message: "the newest one", ConversationID: conv.ID})
		So(err, ShouldBeNil)
		So(res.Response, ShouldEqual, "noted")

		sent := c.calls[0]
		So(sent[0].Role, ShouldEqual, ai.RoleSystem)
		dialog := 0
		for _, m := range sent {
			if m.Role == ai.RoleUser || m.Role == ai.RoleAssistant {
				dialog++
			}
		}
		So(dialog, ShouldBeLessThanOrEqualTo, 21)
		So(sent[len(sent)-1].Role, ShouldEqual, ai.RoleUser)
		So(sent[len(sent)-1].Content, ShouldEqual, "the newest one")

		Convey("已有对话不会被重新命名", func() {
			got, _ := f.convs.GetConversation(ctx, conv.ID)
			So(got.Title, ShouldEqual, "")
		})
	})

	Convey("未注册的工具返回失败信封，本轮仍完成", t, func() {
		f := newFixture()
		c := &scripted{replies: []reply{
			calls(ai.ToolCall{ID: "call_1", Name: "unknown_fn", Arguments: `{}`}),
			text("Sorry, I can't do that. That operation is not supported."),
		}}

		res, err := f.orchestrator(c).Run(ctx, agent.TurnInput{UserID: "u1", Message: "do something odd"})
		So(err, ShouldBeNil)
		So(res.Error, ShouldBeFalse)
		So(res.ToolCallsExecuted, ShouldBeTrue)
		So(res.ToolCalls[0].Result.Success, ShouldBeFalse)
		So(res.ToolCalls[0].Result.ErrorCode(), ShouldEqual, apperr.CodeToolNotFound)
		So(res.Response, ShouldContainSubstring, "not supported")

		So(c.calls, ShouldHaveLength, 2)
		So(c.tools[0], ShouldNotBeEmpty)
		So(c.tools[1], ShouldBeEmpty)

		second := c.calls[1]
		So(second[len(second)-2].Role, ShouldEqual, ai.RoleAssistant)
		So(second[len(second)-2].ToolCalls, ShouldHaveLength, 1)
		last := second[len(second)-1]
		So(last.Role, ShouldEqual, ai.RoleTool)
		So(last.ToolCallID, ShouldEqual, "call_1")
		So(tool.Decode(last.Content).Success, ShouldBeFalse)
	})

	Convey("第一个工具失败时第二个仍然执行", t, func() {
		f := newFixture()
		c := &scripted{replies: []reply{
			calls(
				ai.ToolCall{ID: "call_1", Name: "update_task", Arguments: fmt.Sprintf(`{"task_id":"%s","status":"completed"}`, id.New())},
				ai.ToolCall{ID: "call_2", Name: "create_task", Arguments: `{"title":"write report"}`},
			),
			text("I couldn't find the first task, but I created 'write report'."),
		}}

		res, err := f.orchestrator(c).Run(ctx, agent.TurnInput{UserID: "u1", Message: "finish that and add write report"})
		So(err, ShouldBeNil)
		So(res.Error, ShouldBeFalse)
		So(res.ToolCalls, ShouldHaveLength, 2)
		So(res.ToolCalls[0].Result.ErrorCode(), ShouldEqual, apperr.CodeResourceNotFound)
		So(res.ToolCalls[1].Result.Success, ShouldBeTrue)
		So(c.calls, ShouldHaveLength, 2)

		msgs := f.history("u1", res.ConversationID)
		So(roles(msgs), ShouldResemble, []chat.Role{chat.RoleUser, chat.RoleTool, chat.RoleTool, chat.RoleAssistant})
		So(msgs[1].ToolCallID, ShouldEqual, "call_1")
		So(msgs[2].ToolCallID, ShouldEqual, "call_2")
	})

	Convey("工具参数不是 JSON 时该调用失败", t, func() {
		f := newFixture()
		c := &scripted{replies: []reply{
			calls(ai.ToolCall{ID: "call_1", Name: "create_task", Arguments: `{"title":`}),
			text("Something was wrong with that request."),
		}}

		res, err := f.orchestrator(c).Run(ctx, agent.TurnInput{UserID: "u1", Message: "add it"})
		So(err, ShouldBeNil)
		So(res.ToolCalls[0].Result.ErrorCode(), ShouldEqual, apperr.CodeInvalidInput)
		So(res.Response, ShouldEqual, "Something was wrong with that request.")
	})
}

func TestOrchestratorFailures(t *testing.T) {
	ctx := context.Background()

	Convey("模型调用失败时降级为致歉回复", t, func() {
		f := newFixture()
		m := perf.New(&config.PerfConfig{})
		defer m.Close()

		c := &scripted{replies: []reply{func([]ai.Message, []tool.Definition) (*ai.Completion, error) {
			return nil, errors.New("quota exceeded")
		}}}
		res, err := f.orchestrator(c, agent.WithMonitor(m)).Run(ctx, agent.TurnInput{UserID: "u1", Message: "hello"})
		So(err, ShouldBeNil)
		So(res.Error, ShouldBeTrue)
		So(res.ErrorCode, ShouldEqual, string(apperr.KindExternalService))
		So(res.Response, ShouldEqual, agent.ApologyMessage)
		So(c.calls, ShouldHaveLength, 1)

		msgs := f.history("u1", res.ConversationID)
		So(roles(msgs), ShouldResemble, []chat.Role{chat.RoleUser, chat.RoleAssistant})
		So(msgs[1].Content, ShouldEqual, agent.ApologyMessage)

		m.Flush()
		So(m.ErrorRate(perf.OpChat, time.Minute), ShouldEqual, 100)
		So(m.Stats(perf.OpModel, time.Minute).Count, ShouldEqual, 1)
	})

	Convey("第二次模型调用失败同样降级，工具结果保留", t, func() {
		f := newFixture()
		c := &scripted{replies: []reply{
			calls(ai.ToolCall{ID: "call_1", Name: "create_task", Arguments: `{"title":"pay rent"}`}),
			func([]ai.Message, []tool.Definition) (*ai.Completion, error) { return nil, errors.New("timeout") },
		}}

		res, err := f.orchestrator(c).Run(ctx, agent.TurnInput{UserID: "u1", Message: "add pay rent"})
		So(err, ShouldBeNil)
		So(res.Error, ShouldBeTrue)
		So(res.ToolCallsExecuted, ShouldBeTrue)

		msgs := f.history("u1", res.ConversationID)
		So(roles(msgs), ShouldResemble, []chat.Role{chat.RoleUser, chat.RoleTool, chat.RoleAssistant})
	})

	Convey("模型返回空内容视为故障", t, func() {
		f := newFixture()
		c := &scripted{replies: []reply{text("  ")}}
		res, err := f.orchestrator(c).Run(ctx, agent.TurnInput{UserID: "u1", Message: "hello"})
		So(err, ShouldBeNil)
		So(res.Error, ShouldBeTrue)
		So(res.Response, ShouldEqual, agent.ApologyMessage)
	})

	Convey("模型 panic 被捕获", t, func() {
		f := newFixture()
		c := &scripted{replies: []reply{func([]ai.Message, []tool.Definition) (*ai.Completion, error) {
			panic("boom")
		}}}
		res, err := f.orchestrator(c).Run(ctx, agent.TurnInput{UserID: "u1", Message: "hello"})
		So(err, ShouldBeNil)
		So(res.Error, ShouldBeTrue)
		So(res.ErrorCode, ShouldEqual, string(apperr.KindInternal))
	})

	Convey("会话不存在或不属于调用者返回 NotFound", t, func() {
		f := newFixture()
		o := f.orchestrator(&scripted{})

		_, err := o.Run(ctx, agent.TurnInput{UserID: "u1", Message: "hi", ConversationID: id.New()})
		So(apperr.IsKind(err, apperr.KindNotFound), ShouldBeTrue)

		res, err := o.Run(ctx, agent.TurnInput{UserID: "u1", Message: "hi"})
		So(err, ShouldBeNil)
		_, err = o.Run(ctx, agent.TurnInput{UserID: "u2", Message: "hi", ConversationID: res.ConversationID})
		So(apperr.IsKind(err, apperr.KindNotFound), ShouldBeTrue)

		So(f.history("u1", res.ConversationID), ShouldHaveLength, 2)
	})

	Convey("会话不存在不计入对话错误率", t, func() {
		f := newFixture()
		m := perf.New(&config.PerfConfig{})
		defer m.Close()
		o := f.orchestrator(&scripted{replies: []reply{text("Hi there.")}}, agent.WithMonitor(m))

		res, err := o.Run(ctx, agent.TurnInput{UserID: "u1", Message: "hi"})
		So(err, ShouldBeNil)
		So(res.Error, ShouldBeFalse)

		_, err = o.Run(ctx, agent.TurnInput{UserID: "u1", Message: "hi", ConversationID: id.New()})
		So(apperr.IsKind(err, apperr.KindNotFound), ShouldBeTrue)
		_, err = o.Run(ctx, agent.TurnInput{UserID: "u2", Message: "hi", ConversationID: res.ConversationID})
		So(apperr.IsKind(err, apperr.KindNotFound), ShouldBeTrue)
		_, err = o.Run(ctx, agent.TurnInput{UserID: "u1", Message: "  "})
		So(apperr.IsKind(err, apperr.KindValidation), ShouldBeTrue)

		m.Flush()
		So(m.Stats(perf.OpChat, time.Minute).Count, ShouldEqual, 1)
		So(m.ErrorRate(perf.OpChat, time.Minute), ShouldEqual, 0)
		So(m.TopErrors(10), ShouldBeEmpty)
	})

	Convey("空消息在编排前被拒绝", t, func() {
		f := newFixture()
		_, err := f.orchestrator(&scripted{}).Run(ctx, agent.TurnInput{UserID: "u1", Message: "   "})
		So(apperr.IsKind(err, apperr.KindValidation), ShouldBeTrue)
	})

	Convey("调用方取消不影响已开始的轮次", t, func() {
		f := newFixture()
		c := &scripted{replies: []reply{
			calls(ai.ToolCall{ID: "call_1", Name: "create_task", Arguments: `{"title":"stretch"}`}),
			text("Task 'stretch' created successfully."),
		}}
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		res, err := f.orchestrator(c).Run(cctx, agent.TurnInput{UserID: "u1", Message: "add stretch"})
		So(err, ShouldBeNil)
		So(res.Error, ShouldBeFalse)
		So(c.ctxErrs, ShouldResemble, []error{nil, nil})
	})
}

func TestOrchestratorTitle(t *testing.T) {
	ctx := context.Background()

	Convey("标题取首条消息前 50 个字符，只设置一次", t, func() {
		f := newFixture()
		o := f.orchestrator(&scripted{})

		first := strings.Repeat("a", 60)
		res, err := o.Run(ctx, agent.TurnInput{UserID: "u1", Message: first})
		So(err, ShouldBeNil)

		_, err = o.Run(ctx, agent.TurnInput{UserID: "u1", Message: "second message", ConversationID: res.ConversationID})
		So(err, ShouldBeNil)

		conv, err := f.convs.GetConversation(ctx, res.ConversationID)
		So(err, ShouldBeNil)
		So(conv.Title, ShouldEqual, strings.Repeat("a", 50))
	})
}

func TestOrchestratorConcurrency(t *testing.T) {
	Convey("同一会话的并发轮次串行执行，消息成对出现", t, func() {
		f := newFixture()
		o := f.orchestrator(&scripted{})
		res, err := o.Run(context.Background(), agent.TurnInput{UserID: "u1", Message: "start"})
		So(err, ShouldBeNil)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = o.Run(context.Background(), agent.TurnInput{
					UserID:         "u1",
					Message:        fmt.Sprintf("msg %d", i),
					ConversationID: res.ConversationID,
				})
			}(i)
		}
		wg.Wait()

		msgs := f.history("u1", res.ConversationID)
		So(msgs, ShouldHaveLength, 22)
		for i := 0; i < len(msgs); i += 2 {
			So(msgs[i].Role, ShouldEqual, chat.RoleUser)
			So(msgs[i+1].Role, ShouldEqual, chat.RoleAssistant)
		}
	})
}
