package auth

import (
	"time"

	"taskagent/internal/model/auth"
	httputil "taskagent/internal/pkg/http"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// UserInfo 用户信息（用于响应，所有API共用）
// ID 即对话与任务接口路径中的 user_id
type UserInfo struct {
	ID          string `json:"id"`                      // 用户ID
	Username    string `json:"username"`                // 用户名
	Status      string `json:"status"`                  // 状态：active/banned
	LastLoginAt string `json:"last_login_at,omitempty"` // 最后登录时间
	CreatedAt   string `json:"created_at,omitempty"`    // 创建时间
}

// toUserInfo 将User实体转换为UserInfo（所有API共用）
func toUserInfo(user *auth.User) UserInfo {
	info := UserInfo{
		ID:       user.ID,
		Username: user.Username,
		Status:   string(user.Status),
	}
	if user.LastLoginAt != nil {
		info.LastLoginAt = user.LastLoginAt.Format(time.RFC3339)
	}
	if !user.CreatedAt.IsZero() {
		info.CreatedAt = user.CreatedAt.Format(time.RFC3339)
	}
	return info
}
