package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims JWT Claims结构
// Subject 即用户ID，对话与任务接口都按它做归属校验
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID 返回 token 对应的用户ID
func (c *Claims) UserID() string {
	return c.Subject
}

// JWT JWT工具
type JWT struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewJWT 创建JWT工具实例
func NewJWT(secret string, expiration time.Duration) *JWT {
	return &JWT{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// GenerateToken 生成Access Token
func (j *JWT) GenerateToken(userID, username string) (string, error) {
	now := j.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// Expiration 返回 token 有效期
func (j *JWT) Expiration() time.Duration {
	return j.expiration
}

// ValidateToken 验证Token并返回Claims
func (j *JWT) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
