package embed

import (
	"context"
	"errors"
	"math"
)

// ErrModelUnavailable 构造时无法加载模型，整个流程不可用
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Embedder 文本 -> 单位向量，索引和查询共用同一个实例
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// Normalize 原地 L2 归一化；零向量变成第一维为 1 的单位向量
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		if len(v) > 0 {
			v[0] = 1
		}
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Dot 点积；两个单位向量的点积即余弦相似度
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm 向量长度
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}
