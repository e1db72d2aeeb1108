package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

type Config struct {
	Level        string // debug, info, warn, error
	Format       string // text 或 json
	ReportCaller bool
	Output       io.Writer
}

// ParseLevel 未知级别按 info 处理
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New charmbracelet/log 的 Logger，同时也是 slog.Handler
func New(cfg Config) *log.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           ParseLevel(cfg.Level),
		ReportCaller:    cfg.ReportCaller,
	})
	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(log.JSONFormatter)
	}
	return l
}

// Setup 设为 slog 默认 logger，业务代码只调用 slog
func Setup(cfg Config) *slog.Logger {
	logger := slog.New(New(cfg))
	slog.SetDefault(logger)
	return logger
}
