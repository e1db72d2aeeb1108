package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/plantcare/internal/chunk"
	"github.com/liao/plantcare/internal/corpus"
	"github.com/liao/plantcare/internal/embed"
	"github.com/liao/plantcare/internal/index"
)

type batchCounter struct {
	embed.Embedder
	batches []int
	fail    bool
}

func (b *batchCounter) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if b.fail {
		return nil, errors.New("embedding backend down")
	}
	b.batches = append(b.batches, len(texts))
	return b.Embedder.EmbedMany(ctx, texts)
}

func docs() []corpus.Document {
	return []corpus.Document{
		corpus.NewDocument("cactus.md", "Los cactus necesitan sol directo. Riega solo cuando el sustrato esté seco. Usa macetas con drenaje."),
		corpus.NewDocument("vacio.txt", "   "),
		corpus.NewDocument("helechos.md", "Los helechos prefieren sombra y humedad alta. Mantén la tierra siempre fresca."),
	}
}

func newEmbedder(t *testing.T) *batchCounter {
	t.Helper()
	h, err := embed.NewHash(64)
	require.NoError(t, err)
	return &batchCounter{Embedder: h}
}

func TestReindex(t *testing.T) {
	ctx := context.Background()

	t.Run("Should chunk, embed in batches and replace the index", func(t *testing.T) {
		e := newEmbedder(t)
		idx := index.NewMemory(64)
		// 旧数据必须被清掉
		stale := chunk.Chunk{ID: "viejo.md_chunk_0", SourceName: "viejo.md", Text: "obsoleto"}
		v, err := e.Embed(ctx, stale.Text)
		require.NoError(t, err)
		require.NoError(t, idx.UpsertMany(ctx, []chunk.Chunk{stale}, [][]float32{v}))

		x := New(chunk.New(40, 2), e, idx, 2)
		stats, err := x.Reindex(ctx, docs())
		require.NoError(t, err)

		assert.Equal(t, 3, stats.Documents)
		assert.Equal(t, 1, stats.Skipped)
		assert.Greater(t, stats.Chunks, 2)
		for _, n := range e.batches {
			assert.LessOrEqual(t, n, 2)
		}

		count, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, stats.Chunks, count)

		q, err := e.Embed(ctx, "sol directo para cactus")
		require.NoError(t, err)
		hits, err := idx.Search(ctx, q, 1, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "cactus.md", hits[0].Chunk.SourceName)
	})

	t.Run("Should leave the index untouched when embedding fails", func(t *testing.T) {
		e := newEmbedder(t)
		idx := index.NewMemory(64)
		x := New(chunk.New(0, 0), e, idx, 0)
		_, err := x.Reindex(ctx, docs())
		require.NoError(t, err)
		before, _ := idx.Count(ctx)

		e.fail = true
		_, err = x.Reindex(ctx, docs())
		require.Error(t, err)

		after, _ := idx.Count(ctx)
		assert.Equal(t, before, after)
	})
}

// resetOnly 隐藏 Replace，走清空加分批写入的路径
type resetOnly struct {
	index.Index
	failAt int
	writes int
}

func (r *resetOnly) UpsertMany(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	r.writes++
	if r.writes == r.failAt {
		return errors.New("disk full")
	}
	return r.Index.UpsertMany(ctx, chunks, vectors)
}

// failingReplace 写入失败的原子后端
type failingReplace struct {
	*index.Memory
}

func (f failingReplace) Replace(context.Context, []chunk.Chunk, [][]float32) error {
	return errors.New("commit failed")
}

func TestReindexWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("Should keep the old index when an atomic replace fails", func(t *testing.T) {
		e := newEmbedder(t)
		mem := index.NewMemory(64)
		_, err := New(chunk.New(0, 0), e, mem, 0).Reindex(ctx, docs())
		require.NoError(t, err)
		before, _ := mem.Count(ctx)

		_, err = New(chunk.New(0, 0), e, failingReplace{mem}, 0).Reindex(ctx, docs()[:1])
		require.ErrorContains(t, err, "replace index")

		after, _ := mem.Count(ctx)
		assert.Equal(t, before, after)
	})

	t.Run("Should reset and upsert in batches without Replace", func(t *testing.T) {
		e := newEmbedder(t)
		idx := &resetOnly{Index: index.NewMemory(64)}
		stats, err := New(chunk.New(40, 2), e, idx, 2).Reindex(ctx, docs())
		require.NoError(t, err)

		assert.Equal(t, (stats.Chunks+1)/2, idx.writes)
		n, _ := idx.Count(ctx)
		assert.Equal(t, stats.Chunks, n)
	})

	t.Run("Should report the failing batch without Replace", func(t *testing.T) {
		e := newEmbedder(t)
		idx := &resetOnly{Index: index.NewMemory(64), failAt: 2}
		_, err := New(chunk.New(40, 2), e, idx, 2).Reindex(ctx, docs())
		require.ErrorContains(t, err, "upsert batch at 2")
	})
}

func TestEnsurePopulated(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory(0)
	x := New(chunk.New(0, 0), newEmbedder(t), idx, 0)

	loads := 0
	load := func(context.Context) ([]corpus.Document, error) {
		loads++
		return docs(), nil
	}

	filled, err := x.EnsurePopulated(ctx, load)
	require.NoError(t, err)
	assert.True(t, filled)

	filled, err = x.EnsurePopulated(ctx, load)
	require.NoError(t, err)
	assert.False(t, filled)
	assert.Equal(t, 1, loads)
}
