package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// 探针和指标抓取成功时不记录访问日志
var quietPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// Logger 访问日志中间件
// 按路由模板记录，便于按接口聚合；4xx 记 warn，5xx 记 error
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status < 400 && quietPaths[c.Request.URL.Path] {
			return
		}

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		default:
			event = log.Info()
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		if userID := c.Param("user_id"); userID != "" {
			event = event.Str("user_id", userID)
		}
		if convID := c.Param("conversation_id"); convID != "" {
			event = event.Str("conversation_id", convID)
		}

		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(RequestIDKey)).
			Msg("request completed")
	}
}
