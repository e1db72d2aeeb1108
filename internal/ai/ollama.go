package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	ProviderOllama       = "ollama"
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.2"
)

// ErrLocalUnavailable 本地模型服务不在线或没有可用模型
var ErrLocalUnavailable = errors.New("local model unavailable")

// DefaultFallbackModels 配置的模型不存在时按顺序尝试
var DefaultFallbackModels = []string{"llama3.2", "llama3.2:1b", "mistral", "phi3", "gemma2:2b"}

type OllamaConfig struct {
	BaseURL        string
	Model          string
	FallbackModels []string
	MaxTokens      int
	Temperature    float64
	PingTimeout    time.Duration
}

// Ollama 本地模型，启动时探测一次
type Ollama struct {
	baseURL string
	model   string
	llm     llms.Model
	cfg     OllamaConfig
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllama 调用 /api/tags 探活并选出可用模型
func NewOllama(ctx context.Context, cfg OllamaConfig) (*Ollama, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.FallbackModels == nil {
		cfg.FallbackModels = DefaultFallbackModels
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	var tags tagsResponse
	resp, err := resty.New().SetTimeout(timeout).R().
		SetContext(ctx).
		SetResult(&tags).
		Get(base + "/api/tags")
	if err != nil {
		return nil, fmt.Errorf("%w: ping %s: %v", ErrLocalUnavailable, base, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: ping %s: status %d", ErrLocalUnavailable, base, resp.StatusCode())
	}

	available := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		available = append(available, m.Name)
	}
	model, ok := pickModel(available, cfg.Model, cfg.FallbackModels)
	if !ok {
		return nil, fmt.Errorf("%w: none of %q installed (have %v)", ErrLocalUnavailable, append([]string{cfg.Model}, cfg.FallbackModels...), available)
	}
	if model != cfg.Model {
		slog.Warn("configured local model missing, using fallback", "configured", cfg.Model, "model", model)
	}

	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(base))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocalUnavailable, err)
	}
	slog.Info("local model available", "base_url", base, "model", model)
	return &Ollama{baseURL: base, model: model, llm: llm, cfg: cfg}, nil
}

// pickModel 名称可带 tag，"llama3.2" 匹配 "llama3.2:latest"
func pickModel(available []string, want string, fallbacks []string) (string, bool) {
	candidates := append([]string{want}, fallbacks...)
	for _, c := range candidates {
		for _, a := range available {
			if a == c || strings.HasPrefix(a, c+":") {
				return a, true
			}
		}
	}
	return "", false
}

func (o *Ollama) Name() string  { return ProviderOllama }
func (o *Ollama) Model() string { return o.model }

// Generate 单轮生成，提示词由调用方组装好
func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}
	opts := []llms.CallOption{llms.WithTemperature(o.cfg.Temperature)}
	if o.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(o.cfg.MaxTokens))
	}
	text, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, opts...)
	if err != nil {
		return "", newError(ProviderOllama, KindTransport, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", newError(ProviderOllama, KindEmpty, errors.New("empty response"))
	}
	return text, nil
}
