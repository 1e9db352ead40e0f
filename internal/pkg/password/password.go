package password

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinLength 密码最小长度
const MinLength = 8

// ErrTooShort 密码过短
var ErrTooShort = errors.New("password must be at least 8 characters")

// Hash 加密密码
func Hash(password string) (string, error) {
	if utf8.RuneCountInString(password) < MinLength {
		return "", ErrTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify 验证密码
func Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
