package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger 可探活的外部依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler 创建健康检查处理器，deps 为 nil 的依赖不参与就绪检查
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	active := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{deps: active}
}

// Health 健康检查
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪检查，逐个探测已配置的依赖
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	ready := true
	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"checks": checks,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": checks,
	})
}
