package perf

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"taskagent/internal/config"
)

func TestMonitorStats(t *testing.T) {
	Convey("耗时统计", t, func() {
		m := New(&config.PerfConfig{MaxSamples: 1000, BufferSize: 2048})
		defer m.Close()

		for i := 1; i <= 100; i++ {
			m.Observe(OpModel, time.Duration(i)*time.Millisecond)
		}
		m.Observe(OpTool, 500*time.Millisecond)
		m.Flush()

		s := m.Stats(OpModel, time.Hour)
		So(s.Count, ShouldEqual, 100)
		So(s.Min, ShouldEqual, 1)
		So(s.Max, ShouldEqual, 100)
		So(s.Avg, ShouldAlmostEqual, 50.5, 1e-9)
		So(s.Median, ShouldAlmostEqual, 50.5, 1e-9)
		So(s.P95, ShouldAlmostEqual, 95.05, 1e-9)
		So(s.P99, ShouldAlmostEqual, 99.01, 1e-9)

		all := m.Stats("", time.Hour)
		So(all.Count, ShouldEqual, 101)
		So(all.Max, ShouldEqual, 500)

		So(m.Stats("unknown", time.Hour), ShouldResemble, LatencyStats{})
		So(m.OperationCounts()[OpModel], ShouldEqual, 100)
	})

	Convey("窗口外的样本不参与统计", t, func() {
		m := New(&config.PerfConfig{})
		defer m.Close()

		base := time.Unix(1_700_000_000, 0)
		m.now = func() time.Time { return base }
		m.Observe(OpChat, 10*time.Millisecond)
		m.Flush()

		m.now = func() time.Time { return base.Add(2 * time.Hour) }
		m.Observe(OpChat, 30*time.Millisecond)
		m.Flush()

		s := m.Stats(OpChat, time.Hour)
		So(s.Count, ShouldEqual, 1)
		So(s.Avg, ShouldEqual, 30)
	})

	Convey("环形缓冲只保留最近 max_samples 个样本", t, func() {
		m := New(&config.PerfConfig{MaxSamples: 3})
		defer m.Close()

		for i := 1; i <= 5; i++ {
			m.Observe(OpChat, time.Duration(i)*time.Millisecond)
		}
		m.Flush()

		s := m.Stats(OpChat, time.Hour)
		So(s.Count, ShouldEqual, 3)
		So(s.Min, ShouldEqual, 3)
		So(s.Max, ShouldEqual, 5)
	})
}

func TestMonitorErrors(t *testing.T) {
	Convey("错误率与 Top 错误", t, func() {
		m := New(&config.PerfConfig{})
		defer m.Close()

		for i := 0; i < 4; i++ {
			m.Observe(OpChat, time.Millisecond)
		}
		m.Error(OpChat, "EXTERNAL_SERVICE_ERROR")
		m.Error(OpTool, "TOOL_NOT_FOUND")
		m.Error(OpTool, "TOOL_NOT_FOUND")
		m.Flush()

		So(m.ErrorRate(OpChat, time.Hour), ShouldEqual, 25)
		So(m.ErrorRate("nothing", time.Hour), ShouldEqual, 0)

		top := m.TopErrors(1)
		So(len(top), ShouldEqual, 1)
		So(top[0], ShouldResemble, ErrorCount{Operation: OpTool, ErrorType: "TOOL_NOT_FOUND", Count: 2})
		So(len(m.TopErrors(0)), ShouldEqual, 2)
	})
}

func TestMonitorLifecycle(t *testing.T) {
	Convey("nil 监控可以安全调用", t, func() {
		var m *Monitor
		So(func() {
			m.Observe(OpChat, time.Millisecond)
			m.Error(OpChat, "x")
			m.Rejected("user")
			m.Flush()
			m.Close()
		}, ShouldNotPanic)
	})

	Convey("Close 后记录被忽略且可重复 Close", t, func() {
		m := New(&config.PerfConfig{})
		m.Observe(OpChat, time.Millisecond)
		m.Close()
		m.Close()
		m.Observe(OpChat, time.Millisecond)
		So(m.Stats(OpChat, time.Hour).Count, ShouldEqual, 1)
	})

	Convey("队列满时丢弃样本而不阻塞", t, func() {
		m := New(&config.PerfConfig{MaxSamples: 20000, BufferSize: 1})
		defer m.Close()
		for i := 0; i < 10000; i++ {
			m.Observe(OpChat, time.Millisecond)
		}
		m.Flush()
		So(m.Stats(OpChat, time.Hour).Count+int(m.Dropped()), ShouldEqual, 10000)
	})

	Convey("Prometheus 指标接口", t, func() {
		m := New(&config.PerfConfig{})
		defer m.Close()
		m.Observe(OpModel, 20*time.Millisecond)
		m.Rejected("ip")
		m.Flush()

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body, _ := io.ReadAll(rec.Body)
		So(strings.Contains(string(body), `taskagent_operation_duration_seconds_count{operation="model_call"} 1`), ShouldBeTrue)
		So(strings.Contains(string(body), `taskagent_admission_rejected_total{boundary="ip"} 1`), ShouldBeTrue)
	})
}
