// Package agent 实现一轮对话的编排：
// 接收用户消息、组装上下文、调用模型、按序执行工具、再次调用模型生成回复并持久化。
//
// 会话查找失败之外的错误都不会抛给调用方：一旦用户消息开始持久化，
// 本轮总会以一条 assistant 消息结束，失败时是一条致歉回复。
package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"taskagent/internal/ai"
	"taskagent/internal/ai/tool"
	"taskagent/internal/config"
	"taskagent/internal/model/chat"
	"taskagent/internal/pkg/apperr"
	"taskagent/internal/pkg/ctxutil"
	"taskagent/internal/pkg/perf"
)

// ApologyMessage 模型或内部故障时持久化的回复
const ApologyMessage = "I encountered an issue while processing your request. Please try again or rephrase your request."

// DefaultTitleLength 自动标题截取的字符数
const DefaultTitleLength = 50

// TurnInput 一轮对话的输入，ConversationID 为空表示新建对话
type TurnInput struct {
	UserID         string
	Message        string
	ConversationID string
}

// ToolCallRecord 本轮执行过的一次工具调用
type ToolCallRecord struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments string         `json:"arguments"`
	Result    *tool.Envelope `json:"result"`
}

// TurnResult 一轮对话的结果
type TurnResult struct {
	ConversationID    string
	Response          string
	ToolCallsExecuted bool
	Error             bool   // 本轮降级为致歉回复
	ErrorCode         string // 降级原因的错误类别
	ToolCalls         []ToolCallRecord
	Duration          time.Duration
}

// Option 编排器选项
type Option func(*Orchestrator)

// WithMonitor 设置性能监控
func WithMonitor(m *perf.Monitor) Option {
	return func(o *Orchestrator) { o.monitor = m }
}

// WithClock 设置时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator 对话编排器
type Orchestrator struct {
	store     Store
	assembler *ContextAssembler
	completer ai.Completer
	tools     *tool.Registry
	monitor   *perf.Monitor

	prompt   string
	titleLen int
	locks    *keyedMutex
	now      func() time.Time
}

// NewOrchestrator 创建编排器
func NewOrchestrator(store Store, completer ai.Completer, tools *tool.Registry, cfg config.AgentConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		assembler: NewContextAssembler(store, cfg.ContextLimit),
		completer: completer,
		tools:     tools,
		prompt:    cfg.SystemPrompt,
		titleLen:  cfg.TitleLength,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
	if o.prompt == "" {
		o.prompt = DefaultSystemPrompt
	}
	if o.titleLen <= 0 {
		o.titleLen = DefaultTitleLength
	}
	if o.tools == nil {
		o.tools = tool.NewRegistry()
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Assembler 返回上下文组装器
func (o *Orchestrator) Assembler() *ContextAssembler {
	return o.assembler
}

// Run 执行一轮对话
// 只在输入非法或会话不存在（含不属于该用户）时返回错误，其余故障降级为致歉回复
func (o *Orchestrator) Run(ctx context.Context, in TurnInput) (result *TurnResult, err error) {
	start := o.now()
	if strings.TrimSpace(in.Message) == "" {
		return nil, apperr.Validation("message is required")
	}
	if in.UserID == "" {
		return nil, apperr.Validation("user_id is required")
	}

	conv, err := o.receive(ctx, in)
	if err != nil {
		// 调用方输入问题不计入对话故障；存储故障同时记录耗时，保证错误率分母一致
		if kind := apperr.KindOf(err); kind != apperr.KindValidation && kind != apperr.KindNotFound {
			o.monitor.Observe(perf.OpChat, o.now().Sub(start))
			o.monitor.Error(perf.OpChat, string(kind))
		}
		return nil, err
	}

	// 开始持久化后不再响应调用方取消
	ctx = context.WithoutCancel(ctx)
	unlock := o.locks.Lock(conv.ID)
	defer unlock()

	logger := log.With().Str("conversation_id", conv.ID).Str("user_id", in.UserID).Logger()
	result = &TurnResult{ConversationID: conv.ID, ToolCalls: []ToolCallRecord{}}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("turn panicked")
			o.degrade(ctx, &logger, result, apperr.Internal("turn panicked", fmt.Errorf("%v", r)))
		}
		result.Duration = o.now().Sub(start)
		o.monitor.Observe(perf.OpChat, result.Duration)
	}()

	if err := o.turn(ctx, &logger, conv, in, result); err != nil {
		o.degrade(ctx, &logger, result, err)
	}
	return result, nil
}

// receive 新建对话或查找已有对话并校验归属
func (o *Orchestrator) receive(ctx context.Context, in TurnInput) (*chat.Conversation, error) {
	if in.ConversationID == "" {
		conv, err := o.store.CreateConversation(ctx, in.UserID)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("event", "conversation_created").
			Str("conversation_id", conv.ID).
			Str("user_id", in.UserID).
			Msg("conversation created")
		return conv, nil
	}

	conv, err := o.store.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.OwnedBy(in.UserID) {
		return nil, apperr.NotFound("conversation %s not found", in.ConversationID)
	}
	return conv, nil
}

func (o *Orchestrator) turn(ctx context.Context, logger *zerolog.Logger, conv *chat.Conversation, in TurnInput, result *TurnResult) error {
	if _, err := o.store.AppendMessage(ctx, &chat.Message{
		ConversationID: conv.ID,
		Role:           chat.RoleUser,
		Content:        in.Message,
	}); err != nil {
		return err
	}
	logger.Info().Str("event", "user_message_added").Msg("user message added")

	buildStart := o.now()
	history, err := o.assembler.Build(ctx, conv.ID, 0)
	o.monitor.Observe(perf.OpContext, o.now().Sub(buildStart))
	if err != nil {
		o.monitor.Error(perf.OpContext, string(apperr.KindOf(err)))
		return err
	}
	logger.Debug().Str("event", "context_built").Int("messages", len(history)).Msg("context built")

	if conv.Title == "" && countRole(history, ai.RoleUser) == 1 {
		o.inferTitle(ctx, logger, conv, in.Message)
	}

	messages := make([]ai.Message, 0, len(history)+1)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: o.prompt})
	messages = append(messages, history...)

	completion, err := o.complete(ctx, messages, o.tools.Definitions())
	if err != nil {
		return err
	}

	content := completion.Content
	if completion.HasToolCalls() {
		followUp, err := o.dispatchAll(ctx, logger, conv.ID, in.UserID, completion, result)
		if err != nil {
			return err
		}

		messages = append(messages, ai.Message{Role: ai.RoleAssistant, ToolCalls: completion.ToolCalls})
		messages = append(messages, followUp...)
		final, err := o.complete(ctx, messages, nil)
		if err != nil {
			return err
		}
		content = final.Content
	}

	if strings.TrimSpace(content) == "" {
		return apperr.External("model returned empty content", nil)
	}

	if _, err := o.store.AppendMessage(ctx, &chat.Message{
		ConversationID: conv.ID,
		Role:           chat.RoleAssistant,
		Content:        content,
	}); err != nil {
		return err
	}
	logger.Info().
		Str("event", "assistant_message_added").
		Bool("tool_calls_executed", result.ToolCallsExecuted).
		Msg("assistant message added")

	result.Response = content
	return nil
}

// dispatchAll 按模型返回的顺序执行全部工具调用，单个失败不影响其余调用
func (o *Orchestrator) dispatchAll(ctx context.Context, logger *zerolog.Logger, conversationID, userID string, completion *ai.Completion, result *TurnResult) ([]ai.Message, error) {
	toolCtx := ctxutil.WithUserID(ctx, userID)
	out := make([]ai.Message, 0, len(completion.ToolCalls))

	for _, call := range completion.ToolCalls {
		env := o.dispatch(toolCtx, logger, call)
		result.ToolCalls = append(result.ToolCalls, ToolCallRecord{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
			Result:    env,
		})
		result.ToolCallsExecuted = true

		msg := &chat.Message{
			ConversationID: conversationID,
			Role:           chat.RoleTool,
			Content:        env.String(),
			ToolCallID:     call.ID,
			ToolName:       call.Name,
		}
		if _, err := o.store.AppendMessage(ctx, msg); err != nil {
			return nil, err
		}
		out = append(out, ai.Message{
			Role:       ai.RoleTool,
			Content:    msg.Content,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
	}
	return out, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, logger *zerolog.Logger, call ai.ToolCall) *tool.Envelope {
	start := o.now()
	env := o.tools.DispatchJSON(ctx, call.Name, call.Arguments)
	elapsed := o.now().Sub(start)
	o.monitor.Observe(perf.OpTool, elapsed)

	event := logger.Info()
	if env.Failed() {
		o.monitor.Error(perf.OpTool, env.ErrorCode())
		event = logger.Warn().Str("error_code", env.ErrorCode())
		if env.Error != nil {
			event = event.Str("detail", env.Error.Detail)
		}
	}
	event.
		Str("event", "tool_call").
		Str("tool", call.Name).
		Str("call_id", call.ID).
		Bool("success", env.Success).
		Dur("duration", elapsed).
		Msg("tool call executed")
	return env
}

func (o *Orchestrator) complete(ctx context.Context, messages []ai.Message, defs []tool.Definition) (*ai.Completion, error) {
	start := o.now()
	completion, err := o.completer.Complete(ctx, messages, defs)
	o.monitor.Observe(perf.OpModel, o.now().Sub(start))
	if err != nil {
		o.monitor.Error(perf.OpModel, string(apperr.KindExternalService))
		return nil, apperr.External("model completion failed", err)
	}
	if completion == nil {
		o.monitor.Error(perf.OpModel, string(apperr.KindExternalService))
		return nil, apperr.External("model returned no completion", nil)
	}
	return completion, nil
}

func (o *Orchestrator) inferTitle(ctx context.Context, logger *zerolog.Logger, conv *chat.Conversation, message string) {
	title := strings.TrimSpace(message)
	if utf8.RuneCountInString(title) > o.titleLen {
		title = strings.TrimSpace(string([]rune(title)[:o.titleLen]))
	}
	ok, err := o.store.SetTitleOnce(ctx, conv.ID, title)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to set conversation title")
		return
	}
	if ok {
		conv.Title = title
		logger.Info().Str("event", "title_updated").Str("title", title).Msg("conversation title updated")
	}
}

// degrade 记录故障并持久化致歉回复
func (o *Orchestrator) degrade(ctx context.Context, logger *zerolog.Logger, result *TurnResult, cause error) {
	kind := string(apperr.KindOf(cause))
	o.monitor.Error(perf.OpChat, kind)
	logger.Error().Err(cause).Str("event", "turn_failed").Str("kind", kind).Msg("turn failed")

	result.Response = ApologyMessage
	result.Error = true
	result.ErrorCode = kind

	if _, err := o.store.AppendMessage(ctx, &chat.Message{
		ConversationID: result.ConversationID,
		Role:           chat.RoleAssistant,
		Content:        ApologyMessage,
	}); err != nil {
		logger.Error().Err(err).Msg("failed to persist apology message")
	}
}

func countRole(messages []ai.Message, role ai.Role) int {
	n := 0
	for _, m := range messages {
		if m.Role == role {
			n++
		}
	}
	return n
}
