package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"taskagent/internal/config"
	"taskagent/internal/pkg/ctxutil"
)

// Init 初始化全局日志
func Init(cfg *config.LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	switch cfg.TimeFormat {
	case "Unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "UnixMs":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	default:
		zerolog.TimeFieldFormat = time.RFC3339
	}

	output, err := openOutput(cfg)
	if err != nil {
		return err
	}

	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()
	return nil
}

// openOutput 根据配置选择输出目标，console 格式对开发环境友好
func openOutput(cfg *config.LogConfig) (io.Writer, error) {
	var output io.Writer = os.Stdout
	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return nil, err
		}
		output = file
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}
	return output, nil
}

// Ctx 返回携带 request_id / user_id 字段的 logger
func Ctx(ctx context.Context) *zerolog.Logger {
	l := log.Logger.With()
	if reqID, ok := ctxutil.GetRequestID(ctx); ok {
		l = l.Str("request_id", reqID)
	}
	if userID, ok := ctxutil.GetUserID(ctx); ok {
		l = l.Str("user_id", userID)
	}
	logger := l.Logger()
	return &logger
}
