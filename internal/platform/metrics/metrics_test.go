package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_chunkCounters(t *testing.T) {
	m := New()
	m.ObserveChunk("en", true)
	m.ObserveChunk("en", false)

	if got := testutil.ToFloat64(m.chunkAttempts.WithLabelValues("en")); got != 2 {
		t.Errorf("chunk attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.chunkFailures.WithLabelValues("en")); got != 1 {
		t.Errorf("chunk failures = %v, want 1", got)
	}
}

func TestMetrics_nil_receiver_is_noop(t *testing.T) {
	var m *Metrics
	m.ObserveChunk("en", false)
	m.IncSegments("en", "rendered")
	m.RenderStarted()
	m.RenderFinished()
}

func TestRequestMiddleware_counts_errors(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if got := testutil.ToFloat64(m.requestsTotal); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestHandler_serves_registry(t *testing.T) {
	m := New()
	m.IncVideosAssembled("de")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `reel_videos_assembled_total{group="de"} 1`) {
		t.Errorf("metrics output missing assembled counter:\n%s", rec.Body.String())
	}
}
