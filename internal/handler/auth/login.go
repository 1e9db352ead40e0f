package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/service"
)

// LoginRequest 用户登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // 用户名（必填）
	Password string `json:"password" binding:"required"` // 密码（必填）
}

// LoginResponseData 登录响应数据
type LoginResponseData struct {
	AccessToken string   `json:"access_token"` // Access Token
	ExpiresIn   int      `json:"expires_in"`   // 过期时间（秒）
	TokenType   string   `json:"token_type"`   // Token类型：Bearer
	User        UserInfo `json:"user"`         // 用户信息
}

// Login 用户登录
// @Summary      用户登录
// @Description  用户登录，返回Access Token
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "登录请求"
// @Success      200     {object}  map[string]interface{}
// @Failure      400     {object}  ErrorResponse
// @Failure      401     {object}  ErrorResponse
// @Failure      403     {object}  ErrorResponse
// @Failure      500     {object}  ErrorResponse
// @Router       /api/v1/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "Invalid request body", err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: err.Error()})
		case errors.Is(err, service.ErrUserBanned):
			c.JSON(http.StatusForbidden, ErrorResponse{Code: httputil.CodeForbidden, Message: err.Error()})
		default:
			httputil.Error(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "登录成功",
		"data": LoginResponseData{
			AccessToken: resp.AccessToken,
			ExpiresIn:   resp.ExpiresIn,
			TokenType:   resp.TokenType,
			User:        toUserInfo(resp.User),
		},
	})
}
