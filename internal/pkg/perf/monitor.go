// Package perf 记录各类操作的耗时与错误，供 /api/v1/stats 和 /metrics 查询
//
// 记录是异步的：调用方把样本投递到有界队列后立即返回，队列满时丢弃样本。
// 统计窗口内的数据在同一把锁下计算，保证单次查询结果自洽。
package perf

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskagent/internal/config"
)

// 常用操作类型
const (
	OpChat    = "chat_process"
	OpModel   = "model_call"
	OpTool    = "tool_call"
	OpContext = "context_build"
)

// LatencyStats 耗时统计（毫秒）
type LatencyStats struct {
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// ErrorCount 错误计数
type ErrorCount struct {
	Operation string `json:"operation_type"`
	ErrorType string `json:"error_type"`
	Count     int64  `json:"count"`
}

type sample struct {
	op  string
	ms  float64
	err string // 非空表示错误事件
	at  time.Time
}

type event struct {
	sample
	flush chan struct{}
}

// ring 固定容量的环形缓冲
type ring struct {
	buf  []sample
	next int
	full bool
}

func newRing(size int) *ring {
	return &ring{buf: make([]sample, size)}
}

func (r *ring) push(s sample) {
	r.buf[r.next] = s
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) each(fn func(sample)) {
	n := r.next
	if r.full {
		n = len(r.buf)
	}
	for i := 0; i < n; i++ {
		fn(r.buf[i])
	}
}

// Monitor 性能监控
type Monitor struct {
	mu        sync.Mutex
	durations *ring
	errors    *ring
	opCounts  map[string]int64
	errCounts map[string]int64 // key: operation:error_type

	events  chan event
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	now     func() time.Time

	registry  *prometheus.Registry
	latency   *prometheus.HistogramVec
	errTotal  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	dropTotal prometheus.Counter
}

// New 创建并启动监控
func New(cfg *config.PerfConfig) *Monitor {
	maxSamples := cfg.MaxSamples
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1024
	}

	m := &Monitor{
		durations: newRing(maxSamples),
		errors:    newRing(maxSamples),
		opCounts:  make(map[string]int64),
		errCounts: make(map[string]int64),
		events:    make(chan event, bufferSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
		registry:  prometheus.NewRegistry(),
	}
	m.initMetrics()

	go m.loop()
	return m
}

func (m *Monitor) initMetrics() {
	m.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskagent_operation_duration_seconds",
			Help:    "Duration of agent operations in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)
	m.errTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskagent_operation_errors_total",
			Help: "Total number of operation errors by operation and error type",
		},
		[]string{"operation", "error_type"},
	)
	m.rejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskagent_admission_rejected_total",
			Help: "Total number of turns rejected by the rate limiter",
		},
		[]string{"boundary"},
	)
	m.dropTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskagent_perf_samples_dropped_total",
		Help: "Samples dropped because the monitor queue was full",
	})
	m.registry.MustRegister(m.latency, m.errTotal, m.rejected, m.dropTotal)
}

// Observe 记录一次操作耗时
func (m *Monitor) Observe(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.enqueue(event{sample: sample{op: op, ms: float64(d) / float64(time.Millisecond), at: m.now()}})
}

// Error 记录一次操作错误
func (m *Monitor) Error(op, errType string) {
	if m == nil {
		return
	}
	if errType == "" {
		errType = "unknown"
	}
	m.enqueue(event{sample: sample{op: op, err: errType, at: m.now()}})
}

// Rejected 记录一次限流拒绝
func (m *Monitor) Rejected(boundary string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(boundary).Inc()
}

func (m *Monitor) enqueue(e event) {
	select {
	case <-m.quit:
		return
	default:
	}
	select {
	case m.events <- e:
	default:
		m.dropped.Add(1)
		m.dropTotal.Inc()
	}
}

func (m *Monitor) loop() {
	defer close(m.done)
	for {
		select {
		case e := <-m.events:
			m.apply(e)
		case <-m.quit:
			for {
				select {
				case e := <-m.events:
					m.apply(e)
				default:
					return
				}
			}
		}
	}
}

func (m *Monitor) apply(e event) {
	if e.flush != nil {
		close(e.flush)
		return
	}

	m.mu.Lock()
	if e.err != "" {
		m.errors.push(e.sample)
		m.errCounts[e.op+":"+e.err]++
	} else {
		m.durations.push(e.sample)
		m.opCounts[e.op]++
	}
	m.mu.Unlock()

	if e.err != "" {
		m.errTotal.WithLabelValues(e.op, e.err).Inc()
	} else {
		m.latency.WithLabelValues(e.op).Observe(e.ms / 1000)
	}
}

// Flush 等待此前投递的样本全部处理完
func (m *Monitor) Flush() {
	if m == nil {
		return
	}
	ch := make(chan struct{})
	select {
	case m.events <- event{flush: ch}:
	case <-m.done:
		return
	}
	select {
	case <-ch:
	case <-m.done:
	}
}

// Close 停止后台协程，队列中剩余样本会被处理
func (m *Monitor) Close() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		close(m.quit)
		<-m.done
	})
}

// Dropped 因队列满而丢弃的样本数
func (m *Monitor) Dropped() int64 {
	return m.dropped.Load()
}

// Stats 统计窗口内的耗时，op 为空表示全部操作
func (m *Monitor) Stats(op string, window time.Duration) LatencyStats {
	cutoff := m.now().Add(-window)

	m.mu.Lock()
	var values []float64
	m.durations.each(func(s sample) {
		if !s.at.Before(cutoff) && (op == "" || s.op == op) {
			values = append(values, s.ms)
		}
	})
	m.mu.Unlock()

	return summarize(values)
}

// ErrorRate 窗口内错误数占操作数的百分比
func (m *Monitor) ErrorRate(op string, window time.Duration) float64 {
	cutoff := m.now().Add(-window)
	match := func(s sample) bool {
		return !s.at.Before(cutoff) && (op == "" || s.op == op)
	}

	m.mu.Lock()
	ops, errs := 0, 0
	m.durations.each(func(s sample) {
		if match(s) {
			ops++
		}
	})
	m.errors.each(func(s sample) {
		if match(s) {
			errs++
		}
	})
	m.mu.Unlock()

	if ops == 0 {
		return 0
	}
	return float64(errs) / float64(ops) * 100
}

// TopErrors 按累计次数降序返回错误
func (m *Monitor) TopErrors(limit int) []ErrorCount {
	m.mu.Lock()
	out := make([]ErrorCount, 0, len(m.errCounts))
	for key, n := range m.errCounts {
		op, errType, _ := strings.Cut(key, ":")
		out = append(out, ErrorCount{Operation: op, ErrorType: errType, Count: n})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Operation+out[i].ErrorType < out[j].Operation+out[j].ErrorType
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// OperationCounts 各操作累计次数
func (m *Monitor) OperationCounts() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.opCounts))
	for k, v := range m.opCounts {
		out[k] = v
	}
	return out
}

// Handler 返回 Prometheus 指标接口
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func summarize(values []float64) LatencyStats {
	if len(values) == 0 {
		return LatencyStats{}
	}
	sort.Float64s(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return LatencyStats{
		Avg:    sum / float64(len(values)),
		Median: percentile(values, 50),
		P95:    percentile(values, 95),
		P99:    percentile(values, 99),
		Min:    values[0],
		Max:    values[len(values)-1],
		Count:  len(values),
	}
}

// percentile 线性插值，sorted 需已排序
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p / 100 * float64(len(sorted)-1)
	lower := int(idx)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[lower+1]*weight
}
