package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"taskagent/internal/config"
)

// RedisCache Redis 客户端封装
// 目前承载分布式限流窗口，就绪检查也通过它 ping
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 创建 Redis 客户端并测试连接
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

// NewFromClient 用已有客户端构造（测试使用）
func NewFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Ping 检查连接
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Client 获取原始客户端
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// 常用 key 模式
const (
	RateLimitKeyPrefix = "taskagent:ratelimit:"
)

// RateLimitKey 生成限流窗口 key，scope 为 user 或 ip
func RateLimitKey(scope, key string) string {
	return RateLimitKeyPrefix + scope + ":" + key
}
