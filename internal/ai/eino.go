package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"taskagent/internal/ai/tool"
	"taskagent/internal/pkg/id"
)

// EinoCompleter 基于 eino ChatModel 的补全服务
type EinoCompleter struct {
	model model.ToolCallingChatModel
}

var _ Completer = (*EinoCompleter)(nil)

// NewEinoCompleter 创建补全服务
func NewEinoCompleter(m model.ToolCallingChatModel) *EinoCompleter {
	return &EinoCompleter{model: m}
}

// Complete 调用模型，有工具定义时绑定工具
func (c *EinoCompleter) Complete(ctx context.Context, messages []Message, tools []tool.Definition) (*Completion, error) {
	cm := c.model
	if len(tools) > 0 {
		bound, err := c.model.WithTools(tool.ToolInfos(tools))
		if err != nil {
			return nil, fmt.Errorf("bind tools: %w", err)
		}
		cm = bound
	}

	resp, err := cm.Generate(ctx, toSchemaMessages(messages))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("model returned empty response")
	}
	return fromSchemaMessage(resp), nil
}

// toSchemaMessages 转换为 eino 消息
// 历史中的 tool 消息若找不到对应的 assistant 调用，改写为 system 备注，避免模型接口拒绝
func toSchemaMessages(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	pending := make(map[string]bool)

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case RoleAssistant:
			calls := make([]schema.ToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, schema.ToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: schema.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
				pending[tc.ID] = true
			}
			if len(calls) == 0 {
				calls = nil
			}
			out = append(out, schema.AssistantMessage(m.Content, calls))
		case RoleTool:
			if m.ToolCallID != "" && pending[m.ToolCallID] {
				delete(pending, m.ToolCallID)
				tm := schema.ToolMessage(m.Content, m.ToolCallID)
				tm.ToolName = m.ToolName
				out = append(out, tm)
				continue
			}
			out = append(out, schema.SystemMessage(fmt.Sprintf("Earlier result of tool %s: %s", m.ToolName, m.Content)))
		}
	}
	return out
}

func fromSchemaMessage(msg *schema.Message) *Completion {
	c := &Completion{}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		u := msg.ResponseMeta.Usage
		c.Usage = &Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}

	if len(msg.ToolCalls) == 0 {
		c.Content = msg.Content
		return c
	}
	for _, tc := range msg.ToolCalls {
		callID := tc.ID
		if callID == "" {
			callID = "call_" + id.New()
		}
		c.ToolCalls = append(c.ToolCalls, ToolCall{
			ID:        callID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return c
}
