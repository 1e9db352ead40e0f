package config

import (
	"errors"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Log       LogConfig       `mapstructure:"log"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Perf      PerfConfig      `mapstructure:"perf"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AIConfig AI 服务配置
// APIKey 为空时使用本地 mock 模式
type AIConfig struct {
	Provider string          `mapstructure:"provider"`
	APIKey   string          `mapstructure:"api_key"`
	Model    string          `mapstructure:"model"`
	BaseURL  string          `mapstructure:"base_url"`
	Timeout  time.Duration   `mapstructure:"timeout"` // 单次模型调用超时，0 表示不限
	Options  AIOptionsConfig `mapstructure:"options"`
}

// AIOptionsConfig AI 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	Enabled           bool          `mapstructure:"enabled"`             // 是否对 /api/v1/:user_id 路由启用 JWT 校验
	JWTSecret         string        `mapstructure:"jwt_secret"`          // JWT密钥
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"` // Access Token过期时间
}

// RateLimitConfig 准入限流配置（滑动窗口）
type RateLimitConfig struct {
	Backend       string        `mapstructure:"backend"` // memory, redis
	UserLimit     int           `mapstructure:"user_limit"`
	UserWindow    time.Duration `mapstructure:"user_window"`
	IPLimit       int           `mapstructure:"ip_limit"`
	IPWindow      time.Duration `mapstructure:"ip_window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // 清理空闲 key 的间隔（仅 memory）
}

// AgentConfig 对话编排配置
type AgentConfig struct {
	ContextLimit     int    `mapstructure:"context_limit"`      // 构建上下文时取最近消息条数
	MaxMessageLength int    `mapstructure:"max_message_length"` // 单条消息最大字符数
	TitleLength      int    `mapstructure:"title_length"`       // 自动标题截取长度
	SystemPrompt     string `mapstructure:"system_prompt"`      // 覆盖默认系统提示词（可选）
}

// PerfConfig 性能监控配置
type PerfConfig struct {
	MaxSamples int `mapstructure:"max_samples"`
	BufferSize int `mapstructure:"buffer_size"`
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	validProviders := map[string]bool{"": true, "openai": true, "azure": true, "ark": true}
	if !validProviders[c.AI.Provider] {
		return errors.New("invalid ai provider, must be openai/azure/ark")
	}

	return c.RateLimit.Validate()
}

// Validate 验证限流配置
func (c *RateLimitConfig) Validate() error {
	switch c.Backend {
	case "", "memory", "redis":
	default:
		return errors.New("invalid rate_limit backend, must be memory/redis")
	}
	if c.UserLimit <= 0 || c.IPLimit <= 0 {
		return errors.New("rate_limit limits must be positive")
	}
	if c.UserWindow <= 0 || c.IPWindow <= 0 {
		return errors.New("rate_limit windows must be positive")
	}
	return nil
}
