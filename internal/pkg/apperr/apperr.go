// Package apperr 定义服务内统一的错误分类
//
// 分类与对外映射：
//   - KindValidation      -> 400，编排开始前拒绝
//   - KindNotFound        -> 404，会话不存在或不属于调用者
//   - KindRateLimited     -> 429，准入阶段拒绝，不进入编排
//   - KindToolExecution   -> 只出现在工具结果信封中，不向上抛出
//   - KindExternalService -> 模型调用失败，编排内降级
//   - KindInternal        -> 兜底
package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindNotFound        Kind = "NOT_FOUND"
	KindRateLimited     Kind = "RATE_LIMIT_EXCEEDED"
	KindToolExecution   Kind = "TOOL_EXECUTION_FAILED"
	KindExternalService Kind = "EXTERNAL_SERVICE_ERROR"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// 工具结果信封中使用的细分错误码
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeResourceNotFound = "RESOURCE_NOT_FOUND"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeToolNotFound     = "TOOL_NOT_FOUND"
)

// Error 带类别的错误
type Error struct {
	Kind    Kind
	Code    string // 可选的细分错误码，为空时使用 Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode 返回细分错误码
func (e *Error) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

// New 创建错误
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap 包装底层错误
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithCode 设置细分错误码
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// Validation 输入校验错误
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// NotFound 资源不存在
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

// Internal 内部错误
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// External 外部服务错误
func External(message string, err error) *Error {
	return Wrap(KindExternalService, message, err)
}

// As 解析 *Error
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf 返回错误类别，非 *Error 视为内部错误
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind 判断错误类别
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
