package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"taskagent/internal/model/auth"
	"taskagent/internal/pkg/id"
	"taskagent/internal/pkg/jwt"
	"taskagent/internal/pkg/password"
	"taskagent/internal/repository"
	authRepo "taskagent/internal/repository/auth"
)

var (
	ErrUserAlreadyExists  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserBanned         = errors.New("user is banned")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
)

// AuthService 认证服务
type AuthService struct {
	userRepo authRepo.UserRepository
	jwt      *jwt.JWT
}

// NewAuthService 创建认证服务
func NewAuthService(userRepo authRepo.UserRepository, jwtSecret string, accessTokenExpiry time.Duration) *AuthService {
	if accessTokenExpiry <= 0 {
		accessTokenExpiry = 24 * time.Hour
	}
	return &AuthService{
		userRepo: userRepo,
		jwt:      jwt.NewJWT(jwtSecret, accessTokenExpiry),
	}
}

// RegisterResult 注册结果
type RegisterResult struct {
	UserID   string
	Username string
}

// Register 用户注册，注册后即可登录
func (s *AuthService) Register(ctx context.Context, username, pwd string) (*RegisterResult, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUserID(username); err != nil {
		return nil, err
	}

	hashed, err := password.Hash(pwd)
	if err != nil {
		if !errors.Is(err, password.ErrTooShort) {
			log.Error().Err(err).Msg("failed to hash password")
		}
		return nil, err
	}

	user := &auth.User{
		ID:       id.New(),
		Username: username,
		Password: hashed,
		Status:   auth.UserStatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		log.Error().Err(err).Msg("failed to create user")
		return nil, err
	}

	return &RegisterResult{UserID: user.ID, Username: user.Username}, nil
}

// LoginResult 登录结果
type LoginResult struct {
	AccessToken string
	ExpiresIn   int
	TokenType   string
	User        *auth.User
}

// Login 用户登录，用户不存在与密码错误返回同一个错误
func (s *AuthService) Login(ctx context.Context, username, pwd string) (*LoginResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !password.Verify(pwd, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, ErrUserBanned
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate access token")
		return nil, err
	}

	if err := s.userRepo.UpdateLastLoginAt(ctx, user.ID); err != nil {
		log.Warn().Err(err).Msg("failed to update last login time")
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   int(s.jwt.Expiration().Seconds()),
		TokenType:   "Bearer",
		User:        user,
	}, nil
}

// ValidateToken 校验 Access Token 并返回用户ID
func (s *AuthService) ValidateToken(token string) (string, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	return claims.UserID(), nil
}

// GetUser 查询用户
func (s *AuthService) GetUser(ctx context.Context, userID string) (*auth.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}
