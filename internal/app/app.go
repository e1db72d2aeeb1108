package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/genai"

	"github.com/liao/plantcare/internal/ai"
	"github.com/liao/plantcare/internal/answer"
	"github.com/liao/plantcare/internal/chunk"
	"github.com/liao/plantcare/internal/config"
	"github.com/liao/plantcare/internal/corpus"
	"github.com/liao/plantcare/internal/embed"
	"github.com/liao/plantcare/internal/index"
	"github.com/liao/plantcare/internal/indexer"
	"github.com/liao/plantcare/internal/rag"
	"github.com/liao/plantcare/internal/topic"
)

// App 组装好的各组件
type App struct {
	Config   *config.Config
	Embedder embed.Embedder
	Index    index.Index
	Backend  string
	Indexer  *indexer.Indexer
	Pipeline *answer.Pipeline
}

// NewGenAIClient 没有 API key 时返回 nil
func NewGenAIClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	if cfg.Gemini.APIKey == "" {
		slog.Warn("GEMINI_API_KEY not set, remote generation disabled")
		return nil, nil
	}
	return ai.NewGenAIClient(ctx, cfg.Gemini.APIKey)
}

// NewEmbedder 嵌入模型不可用是致命错误
func NewEmbedder(ctx context.Context, cfg *config.Config, client *genai.Client) (embed.Embedder, error) {
	var (
		e   embed.Embedder
		err error
	)
	switch cfg.EmbeddingProvider() {
	case "gemini":
		e, err = embed.NewGemini(ctx, client, cfg.Gemini.EmbeddingModel, cfg.Embedding.Dimensions)
	case "hash":
		e, err = embed.NewHash(cfg.Embedding.Dimensions)
	default:
		e, err = embed.NewOllama(ctx, cfg.Ollama.BaseURL, cfg.Embedding.OllamaModel)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Embedding.CacheSize <= 0 {
		return e, nil
	}
	return embed.NewCached(e, cfg.Embedding.CacheSize)
}

// OpenIndex pgvector 连不上时退回内存
func OpenIndex(ctx context.Context, cfg *config.Config, dims int) (index.Index, string, error) {
	return index.Open(ctx, index.Config{
		Provider:       cfg.Index.Provider,
		DSN:            cfg.Index.DSN,
		Table:          cfg.Index.Table,
		Path:           cfg.Index.Path,
		EnsureSchema:   cfg.Index.EnsureSchema,
		ConnectTimeout: cfg.Index.ConnectTimeout,
	}, dims)
}

// NewIndexer 按配置的切块参数构造
func NewIndexer(cfg *config.Config, e embed.Embedder, idx index.Index) *indexer.Indexer {
	return indexer.New(chunk.New(cfg.Corpus.ChunkSize, cfg.Corpus.ChunkOverlap), e, idx, cfg.Corpus.BatchSize)
}

// LoadCorpus 读取语料目录
func LoadCorpus(dir string) func(context.Context) ([]corpus.Document, error) {
	return func(ctx context.Context) ([]corpus.Document, error) {
		return corpus.LoadDir(ctx, dir)
	}
}

// Build 组装回答流水线；reg 为 nil 时不注册指标
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	client, err := NewGenAIClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	emb, err := NewEmbedder(ctx, cfg, client)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	idx, backend, err := OpenIndex(ctx, cfg, emb.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	slog.Info("vector index ready", "backend", backend)

	a := &App{
		Config:   cfg,
		Embedder: emb,
		Index:    idx,
		Backend:  backend,
		Indexer:  NewIndexer(cfg, emb, idx),
	}

	if backend == index.ProviderMemory || backend == index.BackendMemoryFallback {
		filled, err := a.Indexer.EnsurePopulated(ctx, LoadCorpus(cfg.Corpus.Dir))
		switch {
		case err != nil:
			slog.Warn("could not populate memory index, answers will come without context", "dir", cfg.Corpus.Dir, "error", err)
		case filled:
			slog.Info("memory index populated from corpus", "dir", cfg.Corpus.Dir)
		}
	}

	retriever := rag.NewRetriever(emb, idx, cfg.RAG.TopK, cfg.RAG.RetrieveThreshold, cfg.RAG.TrustThreshold)

	var remote, local answer.Generator
	if client != nil {
		g, err := ai.NewGemini(client, ai.GeminiConfig{
			Models:          cfg.Gemini.ChatModels,
			Temperature:     cfg.Gemini.Temperature,
			TopP:            cfg.Gemini.TopP,
			TopK:            cfg.Gemini.TopK,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
			RPMLimit:        cfg.Gemini.RPMLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		remote = g
	}
	if cfg.Ollama.Enabled {
		o, err := ai.NewOllama(ctx, ai.OllamaConfig{
			BaseURL:        cfg.Ollama.BaseURL,
			Model:          cfg.Ollama.Model,
			FallbackModels: cfg.Ollama.FallbackModels,
			MaxTokens:      cfg.Ollama.MaxTokens,
			Temperature:    cfg.Ollama.Temperature,
			PingTimeout:    cfg.Ollama.PingTimeout,
		})
		switch {
		case errors.Is(err, ai.ErrLocalUnavailable):
			slog.Warn("local model disabled", "error", err)
		case err != nil:
			return nil, fmt.Errorf("ollama: %w", err)
		default:
			local = o
		}
	}

	table := answer.DefaultCanned()
	if cfg.Canned.File != "" {
		if table, err = answer.LoadCanned(cfg.Canned.File); err != nil {
			return nil, err
		}
	}

	metrics, err := answer.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	a.Pipeline = answer.New(answer.Config{
		Retriever: retriever,
		Gate:      topic.NewGate(),
		Remote:    remote,
		Local:     local,
		Canned:    table,
		Metrics:   metrics,
		Options: answer.Options{
			TopK:              cfg.RAG.TopK,
			HistoryWindow:     cfg.Chat.HistoryWindow,
			RemoteTimeout:     cfg.Gemini.Timeout,
			LocalTimeout:      cfg.Ollama.Timeout,
			LocalContextChars: cfg.Ollama.ContextChars,
		},
	})
	slog.Info("answer pipeline ready", "strategies", a.Pipeline.Strategies())
	return a, nil
}

// Close 释放索引连接
func (a *App) Close() error {
	if a.Index == nil {
		return nil
	}
	return a.Index.Close()
}
