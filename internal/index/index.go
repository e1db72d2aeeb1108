package index

import (
	"context"
	"errors"
	"sort"

	"github.com/liao/plantcare/internal/chunk"
)

// ErrIndexUnavailable 远程向量库连接或查询失败
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Index 存储 (chunk, vector)，按余弦相似度检索
type Index interface {
	// UpsertMany 已有 chunk_id 原位替换，新的追加在末尾
	UpsertMany(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error
	// Reset 清空全部条目，全量重建 = Reset + UpsertMany
	Reset(ctx context.Context) error
	// Search 分数降序，分数相同按插入顺序；只返回 >= threshold 的前 topK 条
	Search(ctx context.Context, query []float32, topK int, threshold float64) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Replacer 一步替换索引全部内容，失败时保留旧内容
type Replacer interface {
	Replace(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error
}

// Hit 一条检索结果
type Hit struct {
	Chunk chunk.Chunk
	Score float64
}

// rank 过滤阈值、稳定降序、截断 topK；输入须已按插入顺序排列
func rank(hits []Hit, topK int, threshold float64) []Hit {
	out := make([]Hit, 0, len(hits))
	if topK <= 0 {
		return out
	}
	for _, h := range hits {
		if h.Score >= threshold {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func checkBatch(chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("index: chunks and vectors length mismatch")
	}
	return nil
}
