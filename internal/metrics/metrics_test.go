package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.SkipRecord("empty_stack")
	m.SkipRecord("empty_stack")
	m.KeyAnomaly()
	m.GraphBatchFailed()
	m.Rectify("maven", nil)
	m.Rectify("maven", errors.New("boom"))
	m.Retrain("npm", nil)
	m.IntegrationFailed("sentry")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsSkipped.WithLabelValues("empty_stack")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeyAnomalies))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GraphBatchFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RectifyCalls.WithLabelValues("maven", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RectifyCalls.WithLabelValues("maven", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetrainCalls.WithLabelValues("npm", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntegrationFailures.WithLabelValues("sentry")))
}

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveRun("daily", "succeeded", 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsGenerated.WithLabelValues("daily", "succeeded")))
	assert.Positive(t, testutil.ToFloat64(m.LastSuccess.WithLabelValues("daily")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SkipRecord("x")
		m.KeyAnomaly()
		m.GraphBatchFailed()
		m.IntegrationFailed("x")
		m.Rectify("npm", nil)
		m.Retrain("npm", nil)
		m.ObserveRun("daily", "failed", time.Second)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.Push(context.Background(), "http://unused", "job"))
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.KeyAnomaly()
	require.NoError(t, m.Push(context.Background(), srv.URL, "stackreport"))

	assert.True(t, strings.HasPrefix(gotPath, "/metrics/job/stackreport"))
	assert.NotEmpty(t, gotBody)
}
