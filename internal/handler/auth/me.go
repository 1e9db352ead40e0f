package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/repository"
)

// GetMe 获取当前用户信息
// @Summary      获取当前用户信息
// @Description  获取当前登录用户的详细信息
// @Tags         认证
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/v1/auth/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "Unauthorized"})
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Code: httputil.CodeUnauthorized, Message: "User no longer exists"})
			return
		}
		httputil.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    toUserInfo(user),
	})
}
