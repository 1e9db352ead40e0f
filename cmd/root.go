package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskagent/internal/config"
	"taskagent/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "taskagent",
	Short: "TaskAgent - conversational task management agent",
	Long: `TaskAgent is a conversational agent built with the Eino framework.
Users manage their tasks in natural language; the agent calls task tools
on their behalf and keeps the conversation history.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.taskagent")
	}

	// 环境变量设置
	viper.SetEnvPrefix("TASKAGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 设置默认值
	setDefaults()

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	// 反序列化到结构体
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to unmarshal config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")

	// AI
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.model", "gpt-4o-mini")
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("ai.options.temperature", 0.7)
	viper.SetDefault("ai.options.max_tokens", 4096)
	viper.SetDefault("ai.options.top_p", 1.0)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// MongoDB，uri 为空时使用内存存储
	viper.SetDefault("mongo.uri", "")
	viper.SetDefault("mongo.database", "taskagent")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)

	// Auth
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.access_token_expiry", "24h")

	// Rate limit
	viper.SetDefault("rate_limit.backend", "memory")
	viper.SetDefault("rate_limit.user_limit", 100)
	viper.SetDefault("rate_limit.user_window", "60s")
	viper.SetDefault("rate_limit.ip_limit", 1000)
	viper.SetDefault("rate_limit.ip_window", "60s")
	viper.SetDefault("rate_limit.sweep_interval", "5m")

	// Agent
	viper.SetDefault("agent.context_limit", 20)
	viper.SetDefault("agent.max_message_length", 10000)
	viper.SetDefault("agent.title_length", 50)

	// Perf
	viper.SetDefault("perf.max_samples", 1000)
	viper.SetDefault("perf.buffer_size", 1024)
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
