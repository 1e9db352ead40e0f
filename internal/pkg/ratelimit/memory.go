package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"taskagent/internal/config"
)

// window 单个 key 的时间戳序列，升序且不含早于 now-span 的记录
type window struct {
	mu     sync.Mutex
	stamps []time.Time
	dead   bool // 已被清理出表，持有旧指针的调用方需要重新取
}

// evict 淘汰过期记录，调用方需持有 w.mu
func (w *window) evict(now time.Time, span time.Duration) {
	i := 0
	for i < len(w.stamps) && now.Sub(w.stamps[i]) > span {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// record 按时间插入，晚拿到锁的早时刻请求不会破坏升序，调用方需持有 w.mu
func (w *window) record(now time.Time) {
	n := len(w.stamps)
	if n == 0 || !now.Before(w.stamps[n-1]) {
		w.stamps = append(w.stamps, now)
		return
	}
	i := sort.Search(n, func(i int) bool { return w.stamps[i].After(now) })
	w.stamps = append(w.stamps, time.Time{})
	copy(w.stamps[i+1:], w.stamps[i:])
	w.stamps[i] = now
}

// table 进程内共享的 key -> window 表
type table struct {
	mu      sync.RWMutex
	policy  Policy
	windows map[string]*window
}

func newTable(p Policy) *table {
	return &table{policy: p, windows: make(map[string]*window)}
}

func (t *table) get(key string) *window {
	t.mu.RLock()
	w, ok := t.windows[key]
	t.mu.RUnlock()
	if ok {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok = t.windows[key]; ok {
		return w
	}
	w = &window{stamps: make([]time.Time, 0, 8)}
	t.windows[key] = w
	return w
}

// admit 淘汰、判断、记录在同一临界区内完成，避免并发超额放行
func (t *table) admit(key string, now time.Time) bool {
	for {
		w := t.get(key)
		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}
		w.evict(now, t.policy.Window)
		allowed := len(w.stamps) < t.policy.Limit
		if allowed {
			w.record(now)
		}
		w.mu.Unlock()
		return allowed
	}
}

// remaining 不为首次出现的 key 建表
func (t *table) remaining(key string, now time.Time) int {
	t.mu.RLock()
	w, ok := t.windows[key]
	t.mu.RUnlock()
	if !ok {
		return t.policy.Limit
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return t.policy.Limit
	}
	w.evict(now, t.policy.Window)
	return max(0, t.policy.Limit-len(w.stamps))
}

// sweep 移除淘汰后为空的窗口，返回移除数量
func (t *table) sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, w := range t.windows {
		w.mu.Lock()
		w.evict(now, t.policy.Window)
		if len(w.stamps) == 0 {
			w.dead = true
			delete(t.windows, key)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

func (t *table) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.windows)
}

// SlidingWindow 进程内滑动窗口限流器
// 进程重启后窗口丢失，这是可接受的近似
type SlidingWindow struct {
	users *table
	ips   *table
	now   func() time.Time
}

var _ Limiter = (*SlidingWindow)(nil)

// NewSlidingWindow 创建进程内限流器
func NewSlidingWindow(cfg *config.RateLimitConfig, opts ...Option) *SlidingWindow {
	o := buildOptions(opts)
	user, ip := Policies(cfg)
	return &SlidingWindow{
		users: newTable(user),
		ips:   newTable(ip),
		now:   o.now,
	}
}

// Admit 准入检查，两个维度都会检查并各自记录
func (l *SlidingWindow) Admit(_ context.Context, userKey, ipKey string) (Decision, error) {
	now := l.now()
	return Decision{
		UserAllowed: l.users.admit(userKey, now),
		IPAllowed:   l.ips.admit(ipKey, now),
	}, nil
}

// Remaining 查询剩余额度
func (l *SlidingWindow) Remaining(_ context.Context, userKey, ipKey string) (Remaining, error) {
	now := l.now()
	return Remaining{
		User: l.users.remaining(userKey, now),
		IP:   l.ips.remaining(ipKey, now),
	}, nil
}

// Sweep 清理空闲 key
func (l *SlidingWindow) Sweep() int {
	now := l.now()
	return l.users.sweep(now) + l.ips.sweep(now)
}

// Keys 当前表中的 key 数量
func (l *SlidingWindow) Keys() int {
	return l.users.size() + l.ips.size()
}

// Run 按间隔清理空闲 key，直到 ctx 取消
func (l *SlidingWindow) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				log.Debug().Int("removed", removed).Int("remaining_keys", l.Keys()).Msg("rate limit windows swept")
			}
		}
	}
}
