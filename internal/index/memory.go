package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/liao/plantcare/internal/chunk"
	"github.com/liao/plantcare/internal/embed"
)

// Memory 内存稠密矩阵，逐行点积，适合几千条以内的语料
type Memory struct {
	mu     sync.RWMutex
	dims   int
	chunks []chunk.Chunk
	matrix []float32 // n x dims，行优先
	pos    map[string]int
}

// NewMemory dims 为 0 时由第一次写入决定
func NewMemory(dims int) *Memory {
	return &Memory{dims: dims, pos: make(map[string]int)}
}

func (m *Memory) UpsertMany(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if err := checkBatch(chunks, vectors); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	dims, err := batchDims(m.dims, chunks, vectors)
	if err != nil {
		return err
	}
	m.dims = dims
	m.put(chunks, vectors)
	return nil
}

// Replace 校验通过后才替换内容；dims 为 0 时按新数据重新确定
func (m *Memory) Replace(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if err := checkBatch(chunks, vectors); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	dims, err := batchDims(m.dims, chunks, vectors)
	if err != nil {
		return err
	}
	m.dims = dims
	m.chunks = make([]chunk.Chunk, 0, len(chunks))
	m.matrix = make([]float32, 0, len(chunks)*dims)
	m.pos = make(map[string]int, len(chunks))
	m.put(chunks, vectors)
	return nil
}

// batchDims 整批写入前检查维度，dims 为 0 时取第一条的维度
func batchDims(dims int, chunks []chunk.Chunk, vectors [][]float32) (int, error) {
	for i, c := range chunks {
		v := vectors[i]
		if dims == 0 {
			dims = len(v)
		}
		if len(v) != dims {
			return 0, fmt.Errorf("memory index: chunk %q dimension mismatch (got %d want %d)", c.ID, len(v), dims)
		}
	}
	return dims, nil
}

// put 调用方持有写锁并已校验维度
func (m *Memory) put(chunks []chunk.Chunk, vectors [][]float32) {
	for i, c := range chunks {
		v := vectors[i]
		if row, ok := m.pos[c.ID]; ok {
			m.chunks[row] = c
			copy(m.matrix[row*m.dims:(row+1)*m.dims], v)
			continue
		}
		m.pos[c.ID] = len(m.chunks)
		m.chunks = append(m.chunks, c)
		m.matrix = append(m.matrix, v...)
	}
}

func (m *Memory) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	m.matrix = nil
	m.pos = make(map[string]int)
	return nil
}

func (m *Memory) Search(ctx context.Context, query []float32, topK int, threshold float64) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.chunks) == 0 {
		return []Hit{}, nil
	}
	if len(query) != m.dims {
		return nil, fmt.Errorf("memory index: query dimension mismatch (got %d want %d)", len(query), m.dims)
	}

	hits := make([]Hit, len(m.chunks))
	for i, c := range m.chunks {
		hits[i] = Hit{Chunk: c, Score: embed.Dot(query, m.matrix[i*m.dims:(i+1)*m.dims])}
	}
	return rank(hits, topK, threshold), nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}

func (m *Memory) Close() error { return nil }
