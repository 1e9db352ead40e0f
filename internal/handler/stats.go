package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httputil "taskagent/internal/pkg/http"
	"taskagent/internal/pkg/perf"
)

const (
	defaultStatsWindow = 5 * time.Minute
	topErrorsLimit     = 10
)

// StatsHandler 性能统计处理器
type StatsHandler struct {
	monitor *perf.Monitor
}

// NewStatsHandler 创建性能统计处理器
func NewStatsHandler(monitor *perf.Monitor) *StatsHandler {
	return &StatsHandler{monitor: monitor}
}

// StatsResponseData 性能统计响应数据
type StatsResponseData struct {
	Operation  string            `json:"operation"`  // 操作类型，为空表示全部
	Window     string            `json:"window"`     // 统计窗口
	Latency    perf.LatencyStats `json:"latency_ms"` // 耗时统计（毫秒）
	ErrorRate  float64           `json:"error_rate"` // 错误率（百分比）
	TopErrors  []perf.ErrorCount `json:"top_errors"` // 累计最多的错误
	Operations map[string]int64  `json:"operations"` // 各操作累计次数
}

// Stats 查询性能统计
// @Summary      性能统计
// @Description  按操作类型查询窗口内的耗时分布、错误率与高频错误
// @Tags         监控
// @Produce      json
// @Param        operation  query     string  false  "操作类型：chat_process, model_call, tool_call, context_build"
// @Param        window     query     string  false  "统计窗口，如 5m、1h，默认 5m"
// @Success      200        {object}  map[string]interface{}
// @Failure      400        {object}  httputil.ErrorResponse
// @Router       /api/v1/stats [get]
func (h *StatsHandler) Stats(c *gin.Context) {
	window := defaultStatsWindow
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			httputil.BadRequest(c, "Invalid window", err)
			return
		}
		window = d
	}

	// 查询前把队列中的样本落盘，保证刚结束的请求可见
	h.monitor.Flush()

	op := c.Query("operation")
	httputil.OK(c, http.StatusOK, StatsResponseData{
		Operation:  op,
		Window:     window.String(),
		Latency:    h.monitor.Stats(op, window),
		ErrorRate:  h.monitor.ErrorRate(op, window),
		TopErrors:  h.monitor.TopErrors(topErrorsLimit),
		Operations: h.monitor.OperationCounts(),
	})
}
