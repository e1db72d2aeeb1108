package embed

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/liao/plantcare/internal/textnorm"
)

const (
	DefaultDimensions = 384
	wordWeight        = 1.0
	trigramWeight     = 0.5
)

// HashEmbedder 词 + 字符三元组特征哈希到固定维度，只用于离线测试
// 它只能匹配字面重叠，配合它使用时要调低检索阈值
type HashEmbedder struct {
	dims int
}

func NewHash(dims int) (*HashEmbedder, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: hash embedder needs positive dimensions, got %d", ErrModelUnavailable, dims)
	}
	return &HashEmbedder{dims: dims}, nil
}

func (h *HashEmbedder) Name() string    { return fmt.Sprintf("hash-%d", h.dims) }
func (h *HashEmbedder) Dimensions() int { return h.dims }

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

func (h *HashEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dims)
	words := textnorm.FoldedWords(text)
	for _, w := range words {
		h.add(v, "w:"+w, wordWeight)
		padded := []rune("^" + w + "$")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(v, "t:"+string(padded[i:i+3]), trigramWeight)
		}
	}
	return Normalize(v)
}

// add 带符号的特征哈希，减小碰撞带来的偏差
func (h *HashEmbedder) add(v []float32, feature string, weight float32) {
	f := fnv.New32a()
	f.Write([]byte(feature))
	sum := f.Sum32()
	idx := int(sum % uint32(h.dims))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	v[idx] += weight
}
