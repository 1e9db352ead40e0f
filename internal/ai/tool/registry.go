package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"taskagent/internal/pkg/apperr"
)

// Param 单个参数的描述
type Param struct {
	Type     string   // string, integer, number, boolean
	Desc     string
	Enum     []string
	Required bool
}

// Params 参数表
type Params map[string]*Param

// Definition 交给模型的工具定义
type Definition struct {
	Name        string
	Description string
	Params      Params
}

// JSONSchema 参数表对应的 JSON Schema
func (p Params) JSONSchema() map[string]any {
	props := make(map[string]any, len(p))
	required := make([]string, 0)
	for name, param := range p {
		prop := map[string]any{"type": param.Type}
		if param.Desc != "" {
			prop["description"] = param.Desc
		}
		if len(param.Enum) > 0 {
			prop["enum"] = param.Enum
		}
		props[name] = prop
		if param.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type entry struct {
	def    Definition
	schema *jsonschema.Schema
	fn     Func
}

// Registry 工具路由表，只做按名分发，不持有业务状态
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
	order []string
}

// NewRegistry 创建空的工具表
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*entry)}
}

// Register 注册工具，同名覆盖
func (r *Registry) Register(name, description string, params Params, fn Func) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("tool name is required")
	}
	if fn == nil {
		return fmt.Errorf("tool %s: nil dispatch function", name)
	}

	raw, err := json.Marshal(params.JSONSchema())
	if err != nil {
		return fmt.Errorf("tool %s: encode schema: %w", name, err)
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(raw))
	if err != nil {
		return fmt.Errorf("tool %s: compile schema: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = &entry{
		def:    Definition{Name: name, Description: description, Params: params},
		schema: compiled,
		fn:     fn,
	}
	return nil
}

// MustRegister 注册失败直接 panic，用于启动期的静态工具
func (r *Registry) MustRegister(name, description string, params Params, fn Func) {
	if err := r.Register(name, description, params, fn); err != nil {
		panic(err)
	}
}

// Definitions 按注册顺序返回工具定义
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Names 已注册的工具名
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Dispatch 按名分发，任何情况下都返回信封
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) *Envelope {
	return Wrap(func(ctx context.Context, args map[string]any) (*Envelope, error) {
		return r.dispatch(ctx, name, args)
	})(ctx, args)
}

// DispatchJSON 先解析模型给出的 JSON 参数再分发
func (r *Registry) DispatchJSON(ctx context.Context, name, argsJSON string) *Envelope {
	args, err := DecodeArgs(argsJSON)
	if err != nil {
		return Fail(apperr.CodeInvalidInput, FailureMessage, err.Error())
	}
	return r.Dispatch(ctx, name, args)
}

func (r *Registry) dispatch(ctx context.Context, name string, args map[string]any) (*Envelope, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Fail(apperr.CodeToolNotFound,
			fmt.Sprintf("Unknown tool '%s'. This request is not supported.", name),
			"available tools: "+strings.Join(r.Names(), ", ")), nil
	}

	args = canonicalEnums(e.def.Params, args)
	if err := validate(e.schema, args); err != nil {
		return Fail(apperr.CodeInvalidInput, fmt.Sprintf("Invalid arguments for %s.", name), err.Error()), nil
	}
	return e.fn(ctx, args)
}

// canonicalEnums 枚举参数按大小写不敏感匹配，改写为定义中的取值，返回新的参数表
func canonicalEnums(params Params, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for name, p := range params {
		if p == nil || len(p.Enum) == 0 {
			continue
		}
		s, ok := out[name].(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		for _, allowed := range p.Enum {
			if strings.EqualFold(s, allowed) {
				out[name] = allowed
				break
			}
		}
	}
	return out
}

// validate 先按 JSON 往返一次，保证传给校验器的是 JSON 解码后的类型
func validate(schema *jsonschema.Schema, args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return schema.Validate(decoded)
}

// DecodeArgs 解析 JSON 参数，空串视为空对象
func DecodeArgs(argsJSON string) (map[string]any, error) {
	argsJSON = strings.TrimSpace(argsJSON)
	if argsJSON == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
