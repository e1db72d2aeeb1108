package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liao/plantcare/internal/embed"
	"github.com/liao/plantcare/internal/index"
)

// 两级阈值：低于 RetrieveThreshold 不返回；达到 TrustThreshold 才当作可信上下文
const (
	RetrieveThreshold = 0.25
	TrustThreshold    = 0.35
	DefaultTopK       = 3
)

// Query 用户问题，附带识别出的物种和症状
type Query struct {
	Text     string
	Subject  string
	Problems []string
}

// Result 一条检索结果
type Result struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

type Retriever struct {
	embedder  embed.Embedder
	index     index.Index
	topK      int
	threshold float64
	trust     float64
}

func NewRetriever(e embed.Embedder, idx index.Index, topK int, threshold, trust float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if trust < threshold {
		trust = threshold
	}
	return &Retriever{
		embedder:  e,
		index:     idx,
		topK:      topK,
		threshold: threshold,
		trust:     trust,
	}
}

// Enhance 物种放在前面，症状追加在后面，把检索拉向同时提到两者的段落
func Enhance(q Query) string {
	text := strings.TrimSpace(q.Text)
	if s := strings.TrimSpace(q.Subject); s != "" {
		text = s + " " + text
	}
	if len(q.Problems) > 0 {
		text += " problemas: " + strings.Join(q.Problems, ", ")
	}
	return text
}

// Retrieve 检索相关段落；topK <= 0 时使用默认值
func (r *Retriever) Retrieve(ctx context.Context, q Query, topK int) ([]Result, error) {
	if r.index == nil {
		slog.Debug("no index configured, skipping RAG")
		return nil, nil
	}
	if topK <= 0 {
		topK = r.topK
	}

	enhanced := Enhance(q)
	vec, err := r.embedder.Embed(ctx, enhanced)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.index.Search(ctx, vec, topK, r.threshold)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{Text: h.Chunk.Text, Source: h.Chunk.SourceName, Score: h.Score})
	}
	slog.Debug("RAG retrieved passages", "query", enhanced, "count", len(results))
	return results, nil
}

// Confident 只保留达到可信阈值的结果
func (r *Retriever) Confident(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, res := range results {
		if res.Score >= r.trust {
			out = append(out, res)
		}
	}
	return out
}

// TrustThreshold 返回配置的可信阈值
func (r *Retriever) TrustThreshold() float64 {
	return r.trust
}
