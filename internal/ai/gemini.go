package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/liao/plantcare/internal/chat"
)

const ProviderGemini = "gemini"

type GeminiConfig struct {
	Models          []string // 多模型轮换
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int32
	RPMLimit        int
}

// Gemini 远程模型，配额耗尽时切到下一个模型
type Gemini struct {
	client   *genai.Client
	cfg      GeminiConfig
	modelIdx atomic.Int64
	limiter  *rate.Limiter
}

// NewGenAIClient 创建 genai 客户端，生成和嵌入共用
func NewGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

func NewGemini(client *genai.Client, cfg GeminiConfig) (*Gemini, error) {
	if client == nil {
		return nil, fmt.Errorf("gemini: nil client")
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("gemini: no chat models configured")
	}
	limit := rate.Inf
	burst := 1
	if cfg.RPMLimit > 0 {
		limit = rate.Limit(float64(cfg.RPMLimit) / 60)
		burst = cfg.RPMLimit
	}
	return &Gemini{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

func (g *Gemini) Name() string { return ProviderGemini }

// currentModel 获取当前模型
func (g *Gemini) currentModel() string {
	idx := g.modelIdx.Load() % int64(len(g.cfg.Models))
	return g.cfg.Models[idx]
}

// rotateModel 切换到下一个模型
func (g *Gemini) rotateModel() string {
	newIdx := g.modelIdx.Add(1) % int64(len(g.cfg.Models))
	model := g.cfg.Models[newIdx]
	slog.Info("rotating to next model", "model", model)
	return model
}

// Generate 每个模型最多试一次；全部配额耗尽返回 KindQuota
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", newError(ProviderGemini, KindTransport, err)
	}

	contents := toContents(req.History)
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.cfg.Temperature),
		MaxOutputTokens: g.cfg.MaxOutputTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if g.cfg.TopP > 0 {
		cfg.TopP = genai.Ptr(g.cfg.TopP)
	}
	if g.cfg.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(g.cfg.TopK))
	}

	var lastErr error
	for attempt := 0; attempt < len(g.cfg.Models); attempt++ {
		model := g.currentModel()
		resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			lastErr = err
			if ClassifyGemini(err) == KindQuota {
				slog.Warn("model quota exceeded, switching", "model", model, "attempt", attempt+1)
				g.rotateModel()
				continue
			}
			return "", newError(ProviderGemini, KindTransport, err)
		}
		text := resp.Text()
		if text == "" {
			return "", newError(ProviderGemini, KindEmpty, fmt.Errorf("model %s returned no text", model))
		}
		slog.Debug("generated reply", "model", model)
		return text, nil
	}
	return "", newError(ProviderGemini, KindQuota,
		fmt.Errorf("all %d models exhausted: %w", len(g.cfg.Models), lastErr))
}

// toContents 对话历史转换为 genai.Content
func toContents(history chat.History) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		var role genai.Role = genai.RoleUser
		if t.Role == chat.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	return contents
}
