package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

const geminiMaxRetries = 3

// GeminiEmbedder 远程嵌入模型
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dims   int
}

// NewGemini 探测一次模型以确定维度，失败返回 ErrModelUnavailable
func NewGemini(ctx context.Context, client *genai.Client, model string, dims int) (*GeminiEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: no genai client", ErrModelUnavailable)
	}
	g := &GeminiEmbedder{client: client, model: model, dims: dims}
	sample, err := g.Embed(ctx, "planta")
	if err != nil {
		return nil, fmt.Errorf("%w: embed %s: %v", ErrModelUnavailable, model, err)
	}
	g.dims = len(sample)
	slog.Info("gemini embedder ready", "model", model, "dims", g.dims)
	return g, nil
}

func (g *GeminiEmbedder) Name() string    { return g.model }
func (g *GeminiEmbedder) Dimensions() int { return g.dims }

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany 批量嵌入，失败时指数退避重试
func (g *GeminiEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	cfg := &genai.EmbedContentConfig{}
	if g.dims > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(g.dims))
	}

	var out [][]float32
	backoff := retry.WithMaxRetries(geminiMaxRetries, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, cfg)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			slog.Warn("embed failed, retrying", "model", g.model, "error", err)
			return retry.RetryableError(err)
		}
		if len(resp.Embeddings) != len(texts) {
			return fmt.Errorf("embed %s: got %d embeddings for %d texts", g.model, len(resp.Embeddings), len(texts))
		}
		out = make([][]float32, len(texts))
		for i, e := range resp.Embeddings {
			out[i] = Normalize(e.Values)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	return out, nil
}
