package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskagent/internal/pkg/ctxutil"
	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/service"
)

// TokenValidator 校验 Access Token 并返回用户ID
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Auth JWT 认证中间件
// 从 Authorization header 中提取 Bearer token，验证后注入 user_id 到 context；
// 路由带 :user_id 参数时要求与 token 中的用户一致
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				httputil.NewErrorResponse(httputil.CodeUnauthorized, "Missing authorization header"))
			return
		}

		// Bearer {token}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				httputil.NewErrorResponse(httputil.CodeUnauthorized, "Invalid authorization header"))
			return
		}

		userID, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, service.ErrExpiredToken) {
				message = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				httputil.NewErrorResponse(httputil.CodeInvalidToken, message))
			return
		}

		if pathUser := c.Param("user_id"); pathUser != "" && pathUser != userID {
			c.AbortWithStatusJSON(http.StatusForbidden,
				httputil.NewErrorResponse(httputil.CodeForbidden, "Token does not match user_id"))
			return
		}

		c.Set("user_id", userID)
		ctx := ctxutil.WithUserID(c.Request.Context(), userID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
