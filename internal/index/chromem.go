package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/liao/plantcare/internal/chunk"
)

const DefaultCollection = "plant_documents"

var errNoEmbedding = errors.New("chromem index stores precomputed embeddings only")

// Chromem 本地持久化后端，向量由调用方预先算好
type Chromem struct {
	mu   sync.RWMutex
	db   *chromem.DB
	name string
	col  *chromem.Collection
	seq  int
}

// NewChromem 创建或加载持久化向量库
func NewChromem(dir, collection string) (*Chromem, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	c := &Chromem{db: db, name: collection}
	if err := c.open(); err != nil {
		return nil, err
	}
	slog.Info("chromem index loaded", "dir", dir, "count", c.col.Count())
	return c, nil
}

func (c *Chromem) open() error {
	col, err := c.db.GetOrCreateCollection(c.name, nil, refuseEmbedding)
	if err != nil {
		return fmt.Errorf("get/create collection: %w", err)
	}
	c.col = col
	c.seq = col.Count()
	return nil
}

func refuseEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbedding
}

func (c *Chromem) UpsertMany(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if err := checkBatch(chunks, vectors); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	docs := make([]chromem.Document, 0, len(chunks))
	for i, ch := range chunks {
		seq := c.seq
		if existing, err := c.col.GetByID(ctx, ch.ID); err == nil {
			if s, convErr := strconv.Atoi(existing.Metadata["seq"]); convErr == nil {
				seq = s
			}
		} else {
			c.seq++
		}
		docs = append(docs, chromem.Document{
			ID:      ch.ID,
			Content: ch.Text,
			Metadata: map[string]string{
				"source_file": ch.SourceName,
				"chunk_index": strconv.Itoa(ch.Index),
				"seq":         strconv.Itoa(seq),
			},
			Embedding: vectors[i],
		})
	}
	return c.col.AddDocuments(ctx, docs, runtime.NumCPU())
}

func (c *Chromem) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.db.DeleteCollection(c.name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return c.open()
}

func (c *Chromem) Search(ctx context.Context, query []float32, topK int, threshold float64) ([]Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := c.col.Count()
	if n == 0 {
		return []Hit{}, nil
	}
	docs, err := c.col.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}

	type seqHit struct {
		Hit
		seq int
	}
	all := make([]seqHit, 0, len(docs))
	for _, d := range docs {
		seq, _ := strconv.Atoi(d.Metadata["seq"])
		idx, _ := strconv.Atoi(d.Metadata["chunk_index"])
		all = append(all, seqHit{
			Hit: Hit{
				Chunk: chunk.Chunk{
					ID:         d.ID,
					SourceName: d.Metadata["source_file"],
					Index:      idx,
					Text:       d.Content,
					CharCount:  len([]rune(d.Content)),
				},
				Score: float64(d.Similarity),
			},
			seq: seq,
		})
	}
	// 先恢复插入顺序，rank 的稳定排序才能按插入顺序打破平局
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	hits := make([]Hit, len(all))
	for i := range all {
		hits[i] = all[i].Hit
	}
	return rank(hits, topK, threshold), nil
}

func (c *Chromem) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.col.Count(), nil
}

func (c *Chromem) Close() error { return nil }
