package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbeddingServer 模拟 /api/embeddings，按 vector 函数返回向量
func fakeEmbeddingServer(t *testing.T, model string, vector func(string) []float32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != model {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model \"` + req.Model + `\" not found, try pulling it first"}`))
			return
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vector(req.Prompt)})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOllamaEmbedder(t *testing.T) {
	vector := func(text string) []float32 {
		if strings.Contains(text, "cactus") {
			return []float32{3, 4, 0}
		}
		return []float32{0, 0, 2}
	}

	t.Run("Should learn dimensions and return unit vectors", func(t *testing.T) {
		srv, _ := fakeEmbeddingServer(t, DefaultOllamaModel, vector)
		e, err := NewOllama(context.Background(), srv.URL, "")
		require.NoError(t, err)
		assert.Equal(t, 3, e.Dimensions())
		assert.Equal(t, "ollama/all-minilm", e.Name())

		v, err := e.Embed(context.Background(), "riego del cactus")
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{0.6, 0.8, 0}, v, 1e-6)
	})

	t.Run("Should embed a batch in order", func(t *testing.T) {
		srv, calls := fakeEmbeddingServer(t, DefaultOllamaModel, vector)
		e, err := NewOllama(context.Background(), srv.URL, DefaultOllamaModel)
		require.NoError(t, err)

		vecs, err := e.EmbedMany(context.Background(), []string{"helecho", "cactus", "orquídea"})
		require.NoError(t, err)
		require.Len(t, vecs, 3)
		assert.InDelta(t, 1.0, Dot(vecs[1], []float32{0.6, 0.8, 0}), 1e-6)
		assert.InDelta(t, 1.0, vecs[0][2], 1e-6)
		assert.Equal(t, int32(4), calls.Load())
	})

	t.Run("Should turn an all-zero embedding into a unit vector", func(t *testing.T) {
		srv, _ := fakeEmbeddingServer(t, DefaultOllamaModel, func(string) []float32 { return []float32{0, 0, 0, 0} })
		e, err := NewOllama(context.Background(), srv.URL, DefaultOllamaModel)
		require.NoError(t, err)

		v, err := e.Embed(context.Background(), "vacío")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, Norm(v), 1e-6)
	})

	t.Run("Should report ErrModelUnavailable when the model is missing", func(t *testing.T) {
		srv, _ := fakeEmbeddingServer(t, "nomic-embed-text", vector)
		_, err := NewOllama(context.Background(), srv.URL, DefaultOllamaModel)
		require.ErrorIs(t, err, ErrModelUnavailable)
	})

	t.Run("Should report ErrModelUnavailable when the server is down", func(t *testing.T) {
		srv, _ := fakeEmbeddingServer(t, DefaultOllamaModel, vector)
		url := srv.URL
		srv.Close()
		_, err := NewOllama(context.Background(), url, DefaultOllamaModel)
		require.ErrorIs(t, err, ErrModelUnavailable)
	})
}

func TestNormalizeZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{1, 0, 0}, v)
	assert.Empty(t, Normalize(nil))
}
