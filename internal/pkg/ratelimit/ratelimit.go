// Package ratelimit 准入限流：按用户和来源地址各维护一个滑动窗口
//
// 每次准入先淘汰窗口外的时间戳，再判断 count < limit，通过则记录 now。
// 用户与地址两个检查都会执行，调用方据此报告是哪一侧触发了限流。
package ratelimit

import (
	"context"
	"time"

	"taskagent/internal/config"
)

// 限流维度
const (
	ScopeUser = "user"
	ScopeIP   = "ip"
)

// Decision 一次准入的结果
type Decision struct {
	UserAllowed bool `json:"user_allowed"`
	IPAllowed   bool `json:"ip_allowed"`
}

// Allowed 两个维度都通过才放行
func (d Decision) Allowed() bool {
	return d.UserAllowed && d.IPAllowed
}

// Boundary 返回触发限流的维度，未限流时为空
func (d Decision) Boundary() string {
	switch {
	case !d.UserAllowed && !d.IPAllowed:
		return ScopeUser + "," + ScopeIP
	case !d.UserAllowed:
		return ScopeUser
	case !d.IPAllowed:
		return ScopeIP
	}
	return ""
}

// Remaining 两个维度各自的剩余额度
type Remaining struct {
	User int `json:"user_remaining"`
	IP   int `json:"ip_remaining"`
}

// Limiter 准入限流接口
// Admit 会记录通过的请求，Remaining 只淘汰过期记录不计数
type Limiter interface {
	Admit(ctx context.Context, userKey, ipKey string) (Decision, error)
	Remaining(ctx context.Context, userKey, ipKey string) (Remaining, error)
}

// Policy 单个维度的限额
type Policy struct {
	Limit  int
	Window time.Duration
}

// Policies 从配置构造用户与地址两个维度的限额，非法值回落到默认值
func Policies(cfg *config.RateLimitConfig) (user Policy, ip Policy) {
	user = Policy{Limit: cfg.UserLimit, Window: cfg.UserWindow}
	ip = Policy{Limit: cfg.IPLimit, Window: cfg.IPWindow}
	if user.Limit <= 0 {
		user.Limit = 100
	}
	if user.Window <= 0 {
		user.Window = time.Minute
	}
	if ip.Limit <= 0 {
		ip.Limit = 1000
	}
	if ip.Window <= 0 {
		ip.Window = time.Minute
	}
	return user, ip
}

// Option 限流器选项
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock 注入时钟（测试使用）
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
