package ctxutil

import "context"

// 使用私有类型避免与其他 context key 冲突
type (
	userIDKeyType    struct{}
	requestIDKeyType struct{}
)

var (
	userIDKey    = userIDKeyType{}
	requestIDKey = requestIDKeyType{}
)

// WithUserID 将 userID 注入到 context 中
// 认证中间件和编排器都会调用：工具执行时从 context 中读取当前用户，
// 保证任务操作只作用于本轮对话的调用者
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID 从 context 中解析 userID
func GetUserID(ctx context.Context) (string, bool) {
	return getString(ctx, userIDKey)
}

// WithRequestID 注入请求ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID 解析请求ID
func GetRequestID(ctx context.Context) (string, bool) {
	return getString(ctx, requestIDKey)
}

func getString(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
