package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"taskagent/internal/config"
	"taskagent/internal/pkg/cache"
	"taskagent/internal/pkg/id"
)

// slidingWindowScript 在 ZSET 上执行淘汰、计数、记录
// KEYS[1] 窗口 key
// ARGV: now(ms) window(ms) limit member record(1/0)
// 返回 {allowed, remaining}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local span = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local record = ARGV[5] == "1"

redis.call("ZREMRANGEBYSCORE", key, "-inf", "(" .. (now - span))
local count = redis.call("ZCARD", key)

if count < limit then
	if record then
		redis.call("ZADD", key, now, ARGV[4])
		redis.call("PEXPIRE", key, span)
		count = count + 1
	end
	return {1, limit - count}
end
return {0, 0}
`)

// RedisWindow 基于 Redis ZSET 的滑动窗口限流器，多实例共享窗口
type RedisWindow struct {
	client *redis.Client
	user   Policy
	ip     Policy
	now    func() time.Time
}

var _ Limiter = (*RedisWindow)(nil)

// NewRedisWindow 创建 Redis 限流器
func NewRedisWindow(rc *cache.RedisCache, cfg *config.RateLimitConfig, opts ...Option) *RedisWindow {
	o := buildOptions(opts)
	user, ip := Policies(cfg)
	return &RedisWindow{
		client: rc.Client(),
		user:   user,
		ip:     ip,
		now:    o.now,
	}
}

// Admit 准入检查
func (l *RedisWindow) Admit(ctx context.Context, userKey, ipKey string) (Decision, error) {
	now := l.now()
	userAllowed, _, err := l.run(ctx, ScopeUser, userKey, l.user, now, true)
	if err != nil {
		return Decision{}, err
	}
	ipAllowed, _, err := l.run(ctx, ScopeIP, ipKey, l.ip, now, true)
	if err != nil {
		return Decision{}, err
	}
	return Decision{UserAllowed: userAllowed, IPAllowed: ipAllowed}, nil
}

// Remaining 查询剩余额度
func (l *RedisWindow) Remaining(ctx context.Context, userKey, ipKey string) (Remaining, error) {
	now := l.now()
	_, user, err := l.run(ctx, ScopeUser, userKey, l.user, now, false)
	if err != nil {
		return Remaining{}, err
	}
	_, ip, err := l.run(ctx, ScopeIP, ipKey, l.ip, now, false)
	if err != nil {
		return Remaining{}, err
	}
	return Remaining{User: user, IP: ip}, nil
}

func (l *RedisWindow) run(ctx context.Context, scope, key string, p Policy, now time.Time, record bool) (bool, int, error) {
	flag := "0"
	if record {
		flag = "1"
	}
	member := fmt.Sprintf("%d-%s", now.UnixMilli(), id.New())

	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{cache.RateLimitKey(scope, key)},
		now.UnixMilli(), p.Window.Milliseconds(), p.Limit, member, flag,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	return res[0] == 1, int(res[1]), nil
}
