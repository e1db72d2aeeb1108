package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Index     IndexConfig     `mapstructure:"index"`
	RAG       RAGConfig       `mapstructure:"rag"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Canned    CannedConfig    `mapstructure:"canned"`
	Log       LogConfig       `mapstructure:"log"`
}

type GeminiConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	ChatModels      []string      `mapstructure:"chat_models"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float32       `mapstructure:"temperature"`
	TopP            float32       `mapstructure:"top_p"`
	TopK            int           `mapstructure:"top_k"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens"`
	RPMLimit        int           `mapstructure:"rpm_limit"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type OllamaConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	FallbackModels []string      `mapstructure:"fallback_models"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Temperature    float64       `mapstructure:"temperature"`
	ContextChars   int           `mapstructure:"context_chars"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PingTimeout    time.Duration `mapstructure:"ping_timeout"`
}

type EmbeddingConfig struct {
	Provider    string `mapstructure:"provider"` // auto, ollama, gemini, hash
	OllamaModel string `mapstructure:"ollama_model"`
	Dimensions  int    `mapstructure:"dimensions"`
	CacheSize   int    `mapstructure:"cache_size"`
}

// EmbeddingProvider 解析 auto：有 Gemini key 用 gemini，否则用本地 Ollama
func (c *Config) EmbeddingProvider() string {
	if c.Embedding.Provider != "auto" {
		return c.Embedding.Provider
	}
	if c.Gemini.APIKey != "" {
		return "gemini"
	}
	return "ollama"
}

type IndexConfig struct {
	Provider       string        `mapstructure:"provider"` // pgvector, chromem, memory
	DSN            string        `mapstructure:"dsn"`
	Table          string        `mapstructure:"table"`
	Path           string        `mapstructure:"path"`
	EnsureSchema   bool          `mapstructure:"ensure_schema"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RAGConfig struct {
	TopK              int     `mapstructure:"top_k"`
	RetrieveThreshold float64 `mapstructure:"retrieve_threshold"`
	TrustThreshold    float64 `mapstructure:"trust_threshold"`
}

type CorpusConfig struct {
	Dir          string `mapstructure:"dir"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	BatchSize    int    `mapstructure:"batch_size"`
}

type ChatConfig struct {
	SessionsDir   string `mapstructure:"sessions_dir"`
	MaxTurns      int    `mapstructure:"max_turns"`
	HistoryWindow int    `mapstructure:"history_window"`
}

type CannedConfig struct {
	File string `mapstructure:"file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.chat_models", []string{"gemini-2.5-flash", "gemini-2.0-flash"})
	v.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.top_k", 40)
	v.SetDefault("gemini.max_output_tokens", 1024)
	v.SetDefault("gemini.rpm_limit", 10)
	v.SetDefault("gemini.timeout", "20s")

	v.SetDefault("ollama.enabled", true)
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.2")
	v.SetDefault("ollama.fallback_models", []string{"llama3.2", "llama3.2:1b", "mistral", "phi3", "gemma2:2b"})
	v.SetDefault("ollama.max_tokens", 512)
	v.SetDefault("ollama.temperature", 0.7)
	v.SetDefault("ollama.context_chars", 1500)
	v.SetDefault("ollama.timeout", "30s")
	v.SetDefault("ollama.ping_timeout", "2s")

	v.SetDefault("embedding.provider", "auto")
	v.SetDefault("embedding.ollama_model", "all-minilm")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.cache_size", 1024)

	v.SetDefault("index.provider", "memory")
	v.SetDefault("index.dsn", "")
	v.SetDefault("index.table", "plant_documents")
	v.SetDefault("index.path", "./data/vectors")
	v.SetDefault("index.ensure_schema", true)
	v.SetDefault("index.connect_timeout", "5s")

	v.SetDefault("rag.top_k", 3)
	v.SetDefault("rag.retrieve_threshold", 0.25)
	v.SetDefault("rag.trust_threshold", 0.35)

	v.SetDefault("corpus.dir", "./data/plantas")
	v.SetDefault("corpus.chunk_size", 400)
	v.SetDefault("corpus.chunk_overlap", 50)
	v.SetDefault("corpus.batch_size", 20)

	v.SetDefault("chat.sessions_dir", "./data/sessions")
	v.SetDefault("chat.max_turns", 20)
	v.SetDefault("chat.history_window", 6)

	v.SetDefault("canned.file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load path 为空时在当前目录找 config.yaml，找不到就只用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// 环境变量覆盖
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		v.Set("gemini.api_key", key)
	}
	if dsn := os.Getenv("SUPABASE_DB_URL"); dsn != "" {
		v.Set("index.dsn", dsn)
	}
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		v.Set("ollama.base_url", url)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查阈值、切块参数和历史窗口
func (c *Config) Validate() error {
	var errs []error

	r := c.RAG
	if r.RetrieveThreshold < 0 || r.RetrieveThreshold > 1 {
		errs = append(errs, fmt.Errorf("rag.retrieve_threshold must be within [0,1], got %v", r.RetrieveThreshold))
	}
	if r.TrustThreshold < r.RetrieveThreshold || r.TrustThreshold > 1 {
		errs = append(errs, fmt.Errorf("rag.trust_threshold must be within [retrieve_threshold,1], got %v", r.TrustThreshold))
	}
	if r.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top_k must be positive, got %d", r.TopK))
	}

	if c.Corpus.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("corpus.chunk_size must be positive, got %d", c.Corpus.ChunkSize))
	}
	if c.Corpus.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("corpus.chunk_overlap must not be negative, got %d", c.Corpus.ChunkOverlap))
	}

	if c.Chat.HistoryWindow <= 0 {
		errs = append(errs, fmt.Errorf("chat.history_window must be positive, got %d", c.Chat.HistoryWindow))
	}
	if c.Chat.MaxTurns < c.Chat.HistoryWindow {
		errs = append(errs, fmt.Errorf("chat.max_turns (%d) must be at least chat.history_window (%d)", c.Chat.MaxTurns, c.Chat.HistoryWindow))
	}

	switch c.Embedding.Provider {
	case "auto", "ollama", "hash":
	case "gemini":
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("embedding.provider gemini needs gemini.api_key (or GEMINI_API_KEY env)"))
		}
	default:
		errs = append(errs, fmt.Errorf("embedding.provider must be auto, ollama, gemini or hash, got %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions))
	}

	switch c.Index.Provider {
	case "pgvector", "chromem", "memory":
	default:
		errs = append(errs, fmt.Errorf("index.provider must be pgvector, chromem or memory, got %q", c.Index.Provider))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
