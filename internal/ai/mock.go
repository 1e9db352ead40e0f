package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"taskagent/internal/ai/tool"
)

// MockCompleter 未配置 API Key 时使用的本地补全
// 按关键词选择任务工具，工具返回后根据信封生成总结，便于离线体验完整的工具调用流程
type MockCompleter struct{}

var _ Completer = (*MockCompleter)(nil)

// NewMockCompleter 创建本地补全
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

var (
	uuidPattern   = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	createPattern = regexp.MustCompile(`(?i)^(?:please\s+)?(?:add|create)(?:\s+a)?(?:\s+new)?\s+task(?:\s+(?:to|called|named|for))?[:\s]+(.+)$`)
	remindPattern = regexp.MustCompile(`(?i)remind me to\s+(.+)$`)
	addToPattern  = regexp.MustCompile(`(?i)^(?:please\s+)?add\s+(.+?)\s+to my (?:list|tasks)$`)
)

const mockHelp = "I can help you create, list, update, or delete tasks. What would you like to do?"

// Complete 实现 Completer
func (m *MockCompleter) Complete(_ context.Context, messages []Message, tools []tool.Definition) (*Completion, error) {
	if len(messages) == 0 {
		return &Completion{Content: mockHelp}, nil
	}
	if messages[len(messages)-1].Role == RoleTool {
		return &Completion{Content: summarizeToolResults(messages)}, nil
	}

	text := lastUserMessage(messages)
	if len(tools) == 0 || text == "" {
		return &Completion{Content: mockHelp}, nil
	}

	available := make(map[string]bool, len(tools))
	for _, d := range tools {
		available[d.Name] = true
	}

	name, args := pickTool(text)
	if name == "" || !available[name] {
		return &Completion{Content: mockHelp}, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return &Completion{ToolCalls: []ToolCall{{ID: "call_1", Name: name, Arguments: string(raw)}}}, nil
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}

func pickTool(text string) (string, map[string]any) {
	lower := strings.ToLower(text)
	taskID := uuidPattern.FindString(text)

	switch {
	case taskID != "" && containsAny(lower, "delete", "remove"):
		return "delete_task", map[string]any{"task_id": taskID}
	case taskID != "" && containsAny(lower, "complete", "done", "finish", "mark"):
		return "update_task", map[string]any{"task_id": taskID, "status": "completed"}
	}

	if title := extractTitle(text); title != "" {
		return "create_task", map[string]any{"title": title}
	}

	if containsAny(lower, "list", "show", "what are my", "my tasks") {
		status := "all"
		if strings.Contains(lower, "pending") {
			status = "pending"
		} else if strings.Contains(lower, "completed") {
			status = "completed"
		}
		return "list_tasks", map[string]any{"status": status}
	}
	return "", nil
}

func extractTitle(text string) string {
	text = strings.TrimRight(strings.TrimSpace(text), ".!?")
	for _, p := range []*regexp.Regexp{createPattern, remindPattern, addToPattern} {
		if m := p.FindStringSubmatch(text); len(m) == 2 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// summarizeToolResults 汇总本轮末尾连续的 tool 消息
func summarizeToolResults(messages []Message) string {
	start := len(messages)
	for start > 0 && messages[start-1].Role == RoleTool {
		start--
	}

	var parts []string
	for _, msg := range messages[start:] {
		env := tool.Decode(msg.Content)
		switch {
		case env == nil:
			parts = append(parts, fmt.Sprintf("I couldn't read the result of %s.", msg.ToolName))
		case env.Success:
			parts = append(parts, describeSuccess(env))
		case env.ErrorCode() == "TOOL_NOT_FOUND":
			parts = append(parts, "Sorry, I can't do that yet: that operation is not supported.")
		case env.Error == nil || env.Error.Detail == "":
			parts = append(parts, fmt.Sprintf("I couldn't complete that: %s", env.Message))
		default:
			parts = append(parts, fmt.Sprintf("I couldn't complete that: %s (%s)", env.Message, env.Error.Detail))
		}
	}
	return strings.Join(parts, " ")
}

func describeSuccess(env *tool.Envelope) string {
	items, ok := env.Data["tasks"].([]any)
	if !ok || len(items) == 0 {
		return env.Message + "."
	}

	lines := []string{env.Message + ":"}
	for _, it := range items {
		t, ok := it.(map[string]any)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %v [%v] (%v)", t["title"], t["status"], t["task_id"]))
	}
	return strings.Join(lines, "\n")
}
