package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/liao/plantcare/internal/chunk"
	"github.com/liao/plantcare/internal/corpus"
	"github.com/liao/plantcare/internal/embed"
	"github.com/liao/plantcare/internal/index"
)

const DefaultBatchSize = 20

// Stats 一次重建的结果
type Stats struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Indexer 离线重建向量索引，不能和在线检索并发执行
type Indexer struct {
	chunker   *chunk.Chunker
	embedder  embed.Embedder
	index     index.Index
	batchSize int
}

func New(c *chunk.Chunker, e embed.Embedder, idx index.Index, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Indexer{chunker: c, embedder: e, index: idx, batchSize: batchSize}
}

// Reindex 先全部切块和向量化，全部成功后才写索引
func (x *Indexer) Reindex(ctx context.Context, docs []corpus.Document) (Stats, error) {
	start := time.Now()
	stats := Stats{Documents: len(docs)}

	var chunks []chunk.Chunk
	for _, doc := range docs {
		cs, err := x.chunker.Chunk(doc)
		if errors.Is(err, chunk.ErrEmptyDocument) {
			slog.Warn("skipping empty document", "source", doc.SourceName)
			stats.Skipped++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("chunk %s: %w", doc.SourceName, err)
		}
		chunks = append(chunks, cs...)
	}

	vectors := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += x.batchSize {
		end := min(i+x.batchSize, len(chunks))
		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Text)
		}
		vs, err := x.embedder.EmbedMany(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("embed batch at %d: %w", i, err)
		}
		vectors = append(vectors, vs...)
		slog.Info("vectorizing", "progress", fmt.Sprintf("%d/%d", end, len(chunks)))
	}

	if err := x.write(ctx, chunks, vectors); err != nil {
		return stats, err
	}

	stats.Chunks = len(chunks)
	stats.Duration = time.Since(start)
	slog.Info("reindex complete", "documents", stats.Documents, "chunks", stats.Chunks, "skipped", stats.Skipped, "duration", stats.Duration)
	return stats, nil
}

// write 支持 Replacer 的后端一步替换；其余后端清空后分批写入，中途失败会留下部分数据
func (x *Indexer) write(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if r, ok := x.index.(index.Replacer); ok {
		if err := r.Replace(ctx, chunks, vectors); err != nil {
			return fmt.Errorf("replace index: %w", err)
		}
		return nil
	}
	if err := x.index.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	for i := 0; i < len(chunks); i += x.batchSize {
		end := min(i+x.batchSize, len(chunks))
		if err := x.index.UpsertMany(ctx, chunks[i:end], vectors[i:end]); err != nil {
			return fmt.Errorf("upsert batch at %d: %w", i, err)
		}
	}
	return nil
}

// EnsurePopulated 索引为空时用语料填充，启动时使用
func (x *Indexer) EnsurePopulated(ctx context.Context, load func(context.Context) ([]corpus.Document, error)) (bool, error) {
	n, err := x.index.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count index: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	docs, err := load(ctx)
	if err != nil {
		return false, err
	}
	if _, err := x.Reindex(ctx, docs); err != nil {
		return false, err
	}
	return true, nil
}
