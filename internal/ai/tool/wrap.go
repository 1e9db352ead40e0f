package tool

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"taskagent/internal/pkg/apperr"
)

// Func 工具实现，返回信封或错误
type Func func(ctx context.Context, args map[string]any) (*Envelope, error)

// SafeFunc 包装后的工具，总是返回信封，不返回错误也不 panic
type SafeFunc func(ctx context.Context, args map[string]any) *Envelope

// Wrap 把错误与 panic 转成失败信封
// 内层已返回的失败信封原样透传，不二次包装
func Wrap(fn Func) SafeFunc {
	return func(ctx context.Context, args map[string]any) (env *Envelope) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("tool panicked")
				env = Fail(string(apperr.KindToolExecution), FailureMessage, fmt.Sprint(r))
			}
		}()

		if fn == nil {
			return Fail(string(apperr.KindToolExecution), FailureMessage, "tool has no implementation")
		}

		out, err := fn(ctx, args)
		if err != nil {
			return Fail(codeOf(err), FailureMessage, err.Error())
		}
		if out == nil {
			return Fail(string(apperr.KindToolExecution), FailureMessage, "tool returned no result")
		}
		if !out.wellFormed() {
			return normalize(out)
		}
		return out
	}
}

// codeOf 从错误推导信封错误码
func codeOf(err error) string {
	appErr, ok := apperr.As(err)
	if !ok {
		return string(apperr.KindToolExecution)
	}
	if appErr.Code != "" {
		return appErr.Code
	}
	switch appErr.Kind {
	case apperr.KindValidation:
		return apperr.CodeInvalidInput
	case apperr.KindNotFound:
		return apperr.CodeResourceNotFound
	case apperr.KindInternal:
		return apperr.CodeDatabaseError
	}
	return string(appErr.Kind)
}

// normalize 修正不满足不变量的信封
func normalize(e *Envelope) *Envelope {
	if e.Success {
		return &Envelope{Success: true, Message: e.Message, Data: e.Data}
	}
	info := e.Error
	if info == nil {
		info = &ErrorInfo{Code: string(apperr.KindToolExecution), Detail: e.Message}
	}
	msg := e.Message
	if msg == "" {
		msg = FailureMessage
	}
	return &Envelope{Success: false, Message: msg, Error: info}
}
