package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/pkg/password"
	"taskagent/internal/service"
)

// RegisterRequest 用户注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=255"` // 用户名（必填），同时作为 user_id 的字符集约束
	Password string `json:"password" binding:"required"`         // 密码（必填，至少8位）
}

// RegisterResponseData 注册响应数据
type RegisterResponseData struct {
	UserID   string `json:"user_id"`  // 用户ID
	Username string `json:"username"` // 用户名
}

// Register 用户注册
// @Summary      用户注册
// @Description  注册新用户，注册后可直接登录
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        request  body      RegisterRequest  true  "注册请求"
// @Success      201      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Router       /api/v1/auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "Invalid request body", err)
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, ErrorResponse{Code: httputil.CodeConflict, Message: err.Error()})
		case errors.Is(err, password.ErrTooShort):
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: httputil.CodeInvalidRequest, Message: err.Error()})
		default:
			httputil.Error(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "注册成功",
		"data": RegisterResponseData{
			UserID:   resp.UserID,
			Username: resp.Username,
		},
	})
}
