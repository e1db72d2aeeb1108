package app

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liao/plantcare/internal/answer"
)

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := offlineConfig(t)
	a, err := Build(context.Background(), cfg, reg)
	require.NoError(t, err)
	defer a.Close()

	a.Pipeline.Answer(context.Background(), answer.Request{Message: "mi bonsai tiene manchas blancas en el tronco"})

	rec := httptest.NewRecorder()
	MetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `plantcare_answers_total{strategy="canned"} 1`)
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := answer.NewMetrics(reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- ServeMetrics(ctx, "127.0.0.1:0", reg, func(a net.Addr) { addrCh <- a })
	}()
	addr := <-addrCh

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "plantcare_breaker_trips_total")

	cancel()
	assert.NoError(t, <-done)
}
