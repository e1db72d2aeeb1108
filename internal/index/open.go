package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	ProviderPGVector = "pgvector"
	ProviderChromem  = "chromem"
	ProviderMemory   = "memory"

	BackendMemoryFallback = "memory-fallback"
)

// Config 索引后端选择
type Config struct {
	Provider       string
	DSN            string
	Table          string
	Path           string
	EnsureSchema   bool
	ConnectTimeout time.Duration
}

// Open 按配置构造索引；远程后端不可用时退回内存索引
func Open(ctx context.Context, cfg Config, dims int) (Index, string, error) {
	switch cfg.Provider {
	case ProviderPGVector:
		pg, err := NewPGVector(ctx, PGConfig{
			DSN:            cfg.DSN,
			Table:          cfg.Table,
			Dimensions:     dims,
			EnsureSchema:   cfg.EnsureSchema,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err == nil {
			return pg, ProviderPGVector, nil
		}
		if !errors.Is(err, ErrIndexUnavailable) {
			return nil, "", err
		}
		slog.Warn("remote index unavailable, falling back to memory", "error", err)
		return NewMemory(dims), BackendMemoryFallback, nil
	case ProviderChromem:
		c, err := NewChromem(cfg.Path, cfg.Table)
		if err != nil {
			return nil, "", err
		}
		return c, ProviderChromem, nil
	case ProviderMemory, "":
		return NewMemory(dims), ProviderMemory, nil
	default:
		return nil, "", fmt.Errorf("unknown index provider %q", cfg.Provider)
	}
}
