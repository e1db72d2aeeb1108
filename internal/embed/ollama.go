package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"
	// DefaultOllamaModel all-minilm 即 all-MiniLM-L6-v2，384 维
	DefaultOllamaModel = "all-minilm"
	ollamaBatchSize    = 32
)

// OllamaEmbedder 通过本地 Ollama 服务调用句向量模型
type OllamaEmbedder struct {
	model string
	dims  int
	impl  embeddings.Embedder
}

// NewOllama 构造后立刻嵌入一次探测维度，服务不在线或模型没装都返回 ErrModelUnavailable
func NewOllama(ctx context.Context, baseURL, model string) (*OllamaEmbedder, error) {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultOllamaBaseURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(base))
	if err != nil {
		return nil, fmt.Errorf("%w: ollama %s: %v", ErrModelUnavailable, base, err)
	}
	impl, err := embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(ollamaBatchSize),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return wrapOllama(ctx, model, impl)
}

func wrapOllama(ctx context.Context, model string, impl embeddings.Embedder) (*OllamaEmbedder, error) {
	o := &OllamaEmbedder{model: model, impl: impl}
	sample, err := o.Embed(ctx, "planta")
	if err != nil {
		return nil, fmt.Errorf("%w: embed %s: %v", ErrModelUnavailable, model, err)
	}
	o.dims = len(sample)
	slog.Info("ollama embedder ready", "model", model, "dims", o.dims)
	return o, nil
}

func (o *OllamaEmbedder) Name() string    { return "ollama/" + o.model }
func (o *OllamaEmbedder) Dimensions() int { return o.dims }

func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := o.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", o.model, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("embed %s: empty vector", o.model)
	}
	if o.dims > 0 && len(v) != o.dims {
		return nil, fmt.Errorf("embed %s: got %d dims, want %d", o.model, len(v), o.dims)
	}
	return Normalize(v), nil
}

func (o *OllamaEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := o.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts with %s: %w", len(texts), o.model, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed %s: got %d embeddings for %d texts", o.model, len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != o.dims {
			return nil, fmt.Errorf("embed %s: text %d got %d dims, want %d", o.model, i, len(v), o.dims)
		}
		vecs[i] = Normalize(v)
	}
	return vecs, nil
}
