package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"taskagent/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func defaultConfig() *config.RateLimitConfig {
	return &config.RateLimitConfig{
		Backend:    "memory",
		UserLimit:  100,
		UserWindow: time.Minute,
		IPLimit:    1000,
		IPWindow:   time.Minute,
	}
}

func TestSlidingWindowAdmit(t *testing.T) {
	ctx := context.Background()

	Convey("用户维度超限后地址维度仍放行", t, func() {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		l := NewSlidingWindow(defaultConfig(), WithClock(clock.Now))

		for i := 1; i <= 100; i++ {
			d, err := l.Admit(ctx, "u1", "1.2.3.4")
			So(err, ShouldBeNil)
			So(d.UserAllowed, ShouldBeTrue)
			So(d.IPAllowed, ShouldBeTrue)
			clock.Advance(50 * time.Millisecond)
		}

		d, err := l.Admit(ctx, "u1", "1.2.3.4")
		So(err, ShouldBeNil)
		So(d.UserAllowed, ShouldBeFalse)
		So(d.IPAllowed, ShouldBeTrue)
		So(d.Allowed(), ShouldBeFalse)
		So(d.Boundary(), ShouldEqual, ScopeUser)
	})

	Convey("首次出现的 key 总是放行", t, func() {
		l := NewSlidingWindow(defaultConfig())
		d, _ := l.Admit(ctx, "fresh-user", "10.0.0.1")
		So(d.Allowed(), ShouldBeTrue)
		So(d.Boundary(), ShouldEqual, "")
	})

	Convey("窗口滑过后按过期数量恢复额度", t, func() {
		cfg := defaultConfig()
		cfg.UserLimit = 5
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		l := NewSlidingWindow(cfg, WithClock(clock.Now))

		// 0s、1s、2s 三次，10s、11s 两次
		for _, step := range []time.Duration{0, time.Second, time.Second, 8 * time.Second, time.Second} {
			clock.Advance(step)
			d, _ := l.Admit(ctx, "u1", "ip")
			So(d.UserAllowed, ShouldBeTrue)
		}
		d, _ := l.Admit(ctx, "u1", "ip")
		So(d.UserAllowed, ShouldBeFalse)

		// 起点后 61.5s：0s、1s 两条已超出 60s
		clock.Advance(50*time.Second + 500*time.Millisecond)
		r, _ := l.Remaining(ctx, "u1", "ip")
		So(r.User, ShouldEqual, 2)

		for i := 0; i < 2; i++ {
			d, _ = l.Admit(ctx, "u1", "ip")
			So(d.UserAllowed, ShouldBeTrue)
		}
		d, _ = l.Admit(ctx, "u1", "ip")
		So(d.UserAllowed, ShouldBeFalse)
	})

	Convey("恰好处于窗口边界的记录不淘汰", t, func() {
		cfg := defaultConfig()
		cfg.UserLimit = 1
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		l := NewSlidingWindow(cfg, WithClock(clock.Now))

		d, _ := l.Admit(ctx, "u1", "ip")
		So(d.UserAllowed, ShouldBeTrue)

		clock.Advance(time.Minute)
		d, _ = l.Admit(ctx, "u1", "ip")
		So(d.UserAllowed, ShouldBeFalse)

		clock.Advance(time.Millisecond)
		d, _ = l.Admit(ctx, "u1", "ip")
		So(d.UserAllowed, ShouldBeTrue)
	})

	Convey("地址维度独立计数", t, func() {
		cfg := defaultConfig()
		cfg.IPLimit = 2
		l := NewSlidingWindow(cfg)

		l.Admit(ctx, "a", "9.9.9.9")
		l.Admit(ctx, "b", "9.9.9.9")
		d, _ := l.Admit(ctx, "c", "9.9.9.9")
		So(d.UserAllowed, ShouldBeTrue)
		So(d.IPAllowed, ShouldBeFalse)
		So(d.Boundary(), ShouldEqual, ScopeIP)
	})
}

func TestSlidingWindowRemaining(t *testing.T) {
	ctx := context.Background()

	Convey("Remaining 不记录请求", t, func() {
		l := NewSlidingWindow(defaultConfig())
		for i := 0; i < 10; i++ {
			r, err := l.Remaining(ctx, "u1", "ip")
			So(err, ShouldBeNil)
			So(r.User, ShouldEqual, 100)
			So(r.IP, ShouldEqual, 1000)
		}
		So(l.Keys(), ShouldEqual, 0)

		l.Admit(ctx, "u1", "ip")
		r, _ := l.Remaining(ctx, "u1", "ip")
		So(r.User, ShouldEqual, 99)
		So(r.IP, ShouldEqual, 999)
	})
}

func TestSlidingWindowConcurrency(t *testing.T) {
	Convey("并发准入不会超额放行", t, func() {
		cfg := defaultConfig()
		cfg.UserLimit = 50
		l := NewSlidingWindow(cfg)

		var admitted int64
		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d, _ := l.Admit(context.Background(), "shared", "ip")
				if d.UserAllowed {
					atomic.AddInt64(&admitted, 1)
				}
			}()
		}
		wg.Wait()
		So(atomic.LoadInt64(&admitted), ShouldEqual, 50)
	})
}

func TestTableOutOfOrderAdmit(t *testing.T) {
	Convey("较早时刻的请求晚拿到锁时仍按时间升序记录", t, func() {
		tb := newTable(Policy{Limit: 2, Window: time.Minute})
		t0 := time.Unix(1_700_000_040, 0)

		So(tb.admit("k", t0.Add(time.Millisecond)), ShouldBeTrue)
		So(tb.admit("k", t0), ShouldBeTrue)

		stamps := tb.windows["k"].stamps
		So(stamps, ShouldHaveLength, 2)
		So(stamps[0].Equal(t0), ShouldBeTrue)
		So(stamps[1].Equal(t0.Add(time.Millisecond)), ShouldBeTrue)

		// t0 那条已过期，释放一个额度
		So(tb.admit("k", t0.Add(time.Minute+500*time.Microsecond)), ShouldBeTrue)
		So(tb.admit("k", t0.Add(time.Minute+600*time.Microsecond)), ShouldBeFalse)
	})

	Convey("乱序插入多条后序列保持有序", t, func() {
		tb := newTable(Policy{Limit: 10, Window: time.Minute})
		t0 := time.Unix(1_700_000_000, 0)
		for _, off := range []int{5, 1, 3, 5, 0, 4} {
			So(tb.admit("k", t0.Add(time.Duration(off)*time.Second)), ShouldBeTrue)
		}
		stamps := tb.windows["k"].stamps
		for i := 1; i < len(stamps); i++ {
			So(stamps[i].Before(stamps[i-1]), ShouldBeFalse)
		}
	})
}

func TestSlidingWindowSweep(t *testing.T) {
	ctx := context.Background()

	Convey("Sweep 移除过期窗口，保留活跃窗口", t, func() {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		l := NewSlidingWindow(defaultConfig(), WithClock(clock.Now))

		l.Admit(ctx, "old", "1.1.1.1")
		clock.Advance(2 * time.Minute)
		l.Admit(ctx, "new", "2.2.2.2")
		So(l.Keys(), ShouldEqual, 4)

		So(l.Sweep(), ShouldEqual, 2)
		So(l.Keys(), ShouldEqual, 2)

		r, _ := l.Remaining(ctx, "new", "2.2.2.2")
		So(r.User, ShouldEqual, 99)

		// 被清理的 key 再次出现时按新窗口计数
		d, _ := l.Admit(ctx, "old", "1.1.1.1")
		So(d.Allowed(), ShouldBeTrue)
		r, _ = l.Remaining(ctx, "old", "1.1.1.1")
		So(r.User, ShouldEqual, 99)
	})
}

func TestPolicies(t *testing.T) {
	Convey("非法配置回落到默认值", t, func() {
		user, ip := Policies(&config.RateLimitConfig{})
		So(user.Limit, ShouldEqual, 100)
		So(user.Window, ShouldEqual, time.Minute)
		So(ip.Limit, ShouldEqual, 1000)
		So(ip.Window, ShouldEqual, time.Minute)
	})
}
