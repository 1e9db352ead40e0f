package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"taskagent/internal/pkg/cache"
	"taskagent/internal/pkg/id"
)

func TestRedisWindow(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	rc := cache.NewFromClient(client)
	ctx := context.Background()

	Convey("Redis 窗口与进程内窗口语义一致", t, func() {
		cfg := defaultConfig()
		cfg.UserLimit = 3
		clock := &fakeClock{now: time.Now()}
		l := NewRedisWindow(rc, cfg, WithClock(clock.Now))

		user := "redis-test-" + id.New()
		ip := "redis-test-ip-" + id.New()
		defer client.Del(ctx, cache.RateLimitKey(ScopeUser, user), cache.RateLimitKey(ScopeIP, ip))

		for i := 0; i < 3; i++ {
			d, err := l.Admit(ctx, user, ip)
			So(err, ShouldBeNil)
			So(d.Allowed(), ShouldBeTrue)
			clock.Advance(time.Millisecond)
		}

		d, err := l.Admit(ctx, user, ip)
		So(err, ShouldBeNil)
		So(d.UserAllowed, ShouldBeFalse)
		So(d.IPAllowed, ShouldBeTrue)

		r, err := l.Remaining(ctx, user, ip)
		So(err, ShouldBeNil)
		So(r.User, ShouldEqual, 0)
		So(r.IP, ShouldEqual, 996)

		clock.Advance(time.Minute)
		r, err = l.Remaining(ctx, user, ip)
		So(err, ShouldBeNil)
		So(r.User, ShouldEqual, 3)
	})
}
