package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePrediction(t *testing.T) {
	m := NewMetrics()
	m.ObservePrediction("", time.Millisecond)
	m.ObservePrediction("", time.Millisecond)
	m.ObservePrediction("out_of_range", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictions.WithLabelValues("success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictions.WithLabelValues("error", "out_of_range")))
}

func TestGauges(t *testing.T) {
	m := NewMetrics()
	m.SetModelAvailable(true)
	m.SetArtifactsStale(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelAvailable))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.artifactsStale))

	m.SetModelAvailable(false)
	m.SetArtifactsStale(true)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.modelAvailable))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.artifactsStale))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest(http.MethodPost, "/api/predict", http.StatusOK, 3*time.Millisecond)
	m.RegisterCacheStats(func() (uint64, uint64) { return 7, 3 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `agridash_http_requests_total{method="POST",route="/api/predict",status="200"} 1`), body)
	assert.Contains(t, body, "agridash_prediction_cache_hits_total 7")
	assert.Contains(t, body, "agridash_prediction_cache_misses_total 3")
}
