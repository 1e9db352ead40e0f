package id

import (
	"github.com/google/uuid"
)

// New 生成新的UUID（string格式），用于会话、任务、用户
func New() string {
	return uuid.New().String()
}

// IsValid 验证UUID格式是否有效
func IsValid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Canonical 返回规范化（小写、带连字符）的UUID字符串
// 客户端可能传入大写或 urn:uuid: 前缀的形式，存储层只认规范形式
func Canonical(s string) (string, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
