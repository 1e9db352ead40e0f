package config

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "release"},
		AI:     AIConfig{Provider: "openai"},
		RateLimit: RateLimitConfig{
			Backend:    "memory",
			UserLimit:  100,
			UserWindow: time.Minute,
			IPLimit:    1000,
			IPWindow:   time.Minute,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	Convey("Config.Validate 校验各配置段", t, func() {
		Convey("默认配置通过校验", func() {
			So(validConfig().Validate(), ShouldBeNil)
		})

		Convey("端口越界被拒绝", func() {
			cfg := validConfig()
			cfg.Server.Port = 70000
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("未知运行模式被拒绝", func() {
			cfg := validConfig()
			cfg.Server.Mode = "prod"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("未知 AI provider 被拒绝", func() {
			cfg := validConfig()
			cfg.AI.Provider = "llama"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("限流后端必须是 memory 或 redis", func() {
			cfg := validConfig()
			cfg.RateLimit.Backend = "etcd"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("限流阈值和窗口必须为正", func() {
			cfg := validConfig()
			cfg.RateLimit.UserLimit = 0
			So(cfg.Validate(), ShouldNotBeNil)

			cfg = validConfig()
			cfg.RateLimit.IPWindow = 0
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}
