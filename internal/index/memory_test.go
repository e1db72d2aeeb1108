package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/plantcare/internal/chunk"
)

func ch(id string) chunk.Chunk {
	return chunk.Chunk{ID: id, SourceName: "guia.md", Text: "texto " + id}
}

func TestMemorySearch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	require.NoError(t, m.UpsertMany(ctx,
		[]chunk.Chunk{ch("a"), ch("b"), ch("c"), ch("d")},
		[][]float32{{1, 0}, {0, 1}, {0.6, 0.8}, {1, 0}},
	))

	t.Run("Should sort descending with insertion order on ties", func(t *testing.T) {
		hits, err := m.Search(ctx, []float32{1, 0}, 10, 0.5)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, "a", hits[0].Chunk.ID)
		assert.Equal(t, "d", hits[1].Chunk.ID)
		assert.Equal(t, "c", hits[2].Chunk.ID)
		assert.InDelta(t, 0.6, hits[2].Score, 1e-6)
	})

	t.Run("Should respect topK and threshold", func(t *testing.T) {
		hits, err := m.Search(ctx, []float32{1, 0}, 1, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)

		hits, err = m.Search(ctx, []float32{1, 0}, 10, 0.99)
		require.NoError(t, err)
		for _, h := range hits {
			assert.GreaterOrEqual(t, h.Score, 0.99)
		}
		assert.Len(t, hits, 2)
	})

	t.Run("Should reject mismatched query dimensions", func(t *testing.T) {
		_, err := m.Search(ctx, []float32{1, 0, 0}, 3, 0)
		require.Error(t, err)
	})
}

func TestMemoryUpsertReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	require.NoError(t, m.UpsertMany(ctx, []chunk.Chunk{ch("a"), ch("b")}, [][]float32{{1, 0}, {1, 0}}))

	replaced := ch("a")
	replaced.Text = "nuevo"
	require.NoError(t, m.UpsertMany(ctx, []chunk.Chunk{replaced}, [][]float32{{1, 0}}))

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := m.Search(ctx, []float32{1, 0}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, "nuevo", hits[0].Chunk.Text)
	assert.Equal(t, "b", hits[1].Chunk.ID)
}

func TestMemoryRejectsWholeBatchOnDimensionMismatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Should write nothing from an upsert with one bad vector", func(t *testing.T) {
		m := NewMemory(2)
		require.NoError(t, m.UpsertMany(ctx, []chunk.Chunk{ch("a")}, [][]float32{{1, 0}}))

		err := m.UpsertMany(ctx, []chunk.Chunk{ch("b"), ch("c"), ch("d")}, [][]float32{{0, 1}, {1, 0}, {1, 0, 0}})
		require.Error(t, err)

		n, _ := m.Count(ctx)
		assert.Equal(t, 1, n)
	})

	t.Run("Should keep the old contents when a replace fails", func(t *testing.T) {
		m := NewMemory(2)
		require.NoError(t, m.UpsertMany(ctx, []chunk.Chunk{ch("a")}, [][]float32{{1, 0}}))

		err := m.Replace(ctx, []chunk.Chunk{ch("b"), ch("c")}, [][]float32{{0, 1}, {1}})
		require.Error(t, err)

		hits, err := m.Search(ctx, []float32{1, 0}, 5, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "a", hits[0].Chunk.ID)
	})

	t.Run("Should swap in the new contents on success", func(t *testing.T) {
		m := NewMemory(2)
		require.NoError(t, m.UpsertMany(ctx, []chunk.Chunk{ch("a")}, [][]float32{{1, 0}}))

		require.NoError(t, m.Replace(ctx, []chunk.Chunk{ch("b"), ch("c")}, [][]float32{{0, 1}, {1, 0}}))

		hits, err := m.Search(ctx, []float32{1, 0}, 5, 0)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "c", hits[0].Chunk.ID)
		assert.Equal(t, "b", hits[1].Chunk.ID)
	})
}

func TestMemoryEmptyAndReset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)

	hits, err := m.Search(ctx, []float32{1, 0}, 5, 0.25)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	require.NoError(t, m.UpsertMany(ctx, []chunk.Chunk{ch("a")}, [][]float32{{1, 0}}))
	require.NoError(t, m.Reset(ctx))
	n, _ := m.Count(ctx)
	assert.Zero(t, n)

	err = m.UpsertMany(ctx, []chunk.Chunk{ch("a")}, nil)
	require.Error(t, err)
}

func TestOpenFallsBackToMemory(t *testing.T) {
	idx, backend, err := Open(context.Background(), Config{Provider: ProviderPGVector}, 4)
	require.NoError(t, err)
	assert.Equal(t, BackendMemoryFallback, backend)
	assert.IsType(t, &Memory{}, idx)

	_, _, err = Open(context.Background(), Config{Provider: "redis"}, 4)
	require.Error(t, err)
}
