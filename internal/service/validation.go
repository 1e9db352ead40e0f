package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"taskagent/internal/pkg/apperr"
	"taskagent/internal/pkg/id"
)

const (
	// DefaultMaxMessageLength 单条消息默认最大字符数
	DefaultMaxMessageLength = 10000
	// MaxUserIDLength 用户ID最大长度
	MaxUserIDLength = 255
)

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateUserID 用户ID为 1..255 个 [a-zA-Z0-9._-] 字符
func ValidateUserID(userID string) error {
	if userID == "" {
		return apperr.Validation("user_id is required")
	}
	if len(userID) > MaxUserIDLength {
		return apperr.Validation("user_id exceeds %d characters", MaxUserIDLength)
	}
	if !userIDPattern.MatchString(userID) {
		return apperr.Validation("user_id contains invalid characters")
	}
	return nil
}

// SanitizeMessage 去掉 NUL 与首尾空白，校验非空与长度
func SanitizeMessage(message string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	message = strings.TrimSpace(strings.ReplaceAll(message, "\x00", ""))
	if message == "" {
		return "", apperr.Validation("message is required")
	}
	if n := utf8.RuneCountInString(message); n > maxLen {
		return "", apperr.Validation("message exceeds %d characters", maxLen)
	}
	return message, nil
}

// NormalizeConversationID 为空表示新建对话，否则必须是 UUID
func NormalizeConversationID(conversationID string) (string, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return "", nil
	}
	canonical, ok := id.Canonical(conversationID)
	if !ok {
		return "", apperr.Validation("conversation_id must be a valid UUID")
	}
	return canonical, nil
}

// ValidateTaskID 任务ID必须是 UUID
func ValidateTaskID(taskID string) (string, error) {
	canonical, ok := id.Canonical(strings.TrimSpace(taskID))
	if !ok {
		return "", apperr.Validation("task_id must be a valid UUID")
	}
	return canonical, nil
}
