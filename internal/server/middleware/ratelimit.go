package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/pkg/perf"
	"taskagent/internal/pkg/ratelimit"
)

// 剩余额度响应头
const (
	HeaderRemainingUser = "X-RateLimit-Remaining-User"
	HeaderRemainingIP   = "X-RateLimit-Remaining-IP"
)

// RateLimit 准入限流中间件，按路径中的 user_id 与客户端地址各检查一次
// 限流器自身出错时放行，只记录日志
func RateLimit(limiter ratelimit.Limiter, monitor *perf.Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userKey := c.Param("user_id")
		ipKey := c.ClientIP()

		decision, err := limiter.Admit(ctx, userKey, ipKey)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userKey).Str("client_ip", ipKey).Msg("rate limiter unavailable, admitting request")
			c.Next()
			return
		}

		if remaining, err := limiter.Remaining(ctx, userKey, ipKey); err == nil {
			c.Header(HeaderRemainingUser, strconv.Itoa(remaining.User))
			c.Header(HeaderRemainingIP, strconv.Itoa(remaining.IP))
		}

		if !decision.Allowed() {
			boundary := decision.Boundary()
			monitor.Rejected(boundary)
			log.Warn().
				Str("user_id", userKey).
				Str("client_ip", ipKey).
				Str("boundary", boundary).
				Msg("request rejected by rate limiter")

			c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.NewErrorResponse(
				httputil.CodeRateLimited,
				"Rate limit exceeded",
				fmt.Sprintf("%s rate limit exceeded", boundary),
			))
			return
		}

		c.Next()
	}
}
