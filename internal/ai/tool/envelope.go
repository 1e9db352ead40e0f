package tool

import (
	"encoding/json"

	"taskagent/internal/pkg/apperr"
)

// FailureMessage 工具执行异常时返回给模型的统一提示
const FailureMessage = "The operation failed. Please try again."

// Envelope 工具结果信封，工具与编排器之间唯一的结果形态
// Success=false 时 Error 必然存在且 Data 为空
type Envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *ErrorInfo     `json:"error,omitempty"`
}

// ErrorInfo 失败详情
type ErrorInfo struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// OK 成功信封
func OK(message string, data map[string]any) *Envelope {
	return &Envelope{Success: true, Message: message, Data: data}
}

// Fail 失败信封
func Fail(code, message, detail string) *Envelope {
	if code == "" {
		code = string(apperr.KindToolExecution)
	}
	return &Envelope{
		Success: false,
		Message: message,
		Error:   &ErrorInfo{Code: code, Detail: detail},
	}
}

// Failed 是否失败
func (e *Envelope) Failed() bool {
	return e == nil || !e.Success
}

// ErrorCode 失败时的错误码，成功时为空
func (e *Envelope) ErrorCode() string {
	if e == nil || e.Success || e.Error == nil {
		return ""
	}
	return e.Error.Code
}

// wellFormed 检查失败信封是否满足不变量
func (e *Envelope) wellFormed() bool {
	if e.Success {
		return e.Error == nil
	}
	return e.Error != nil && e.Data == nil
}

// String 序列化为 JSON，作为 role=tool 消息内容
func (e *Envelope) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		return `{"success":false,"message":"` + FailureMessage + `","error":{"code":"INTERNAL_ERROR","detail":"envelope encode failed"}}`
	}
	return string(b)
}

// Decode 解析 role=tool 消息内容，失败返回 nil
func Decode(content string) *Envelope {
	var e Envelope
	if err := json.Unmarshal([]byte(content), &e); err != nil {
		return nil
	}
	return &e
}
