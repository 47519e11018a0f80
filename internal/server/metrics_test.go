package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Endpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	// Generate some traffic so counters are non-empty.
	env.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/files", nil))

	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "docrag_http_requests_total") {
		t.Errorf("metrics body missing http counter:\n%s", w.Body.String())
	}
}

func TestMetrics_IngestOutcomes(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	env.uploadFile(t, "doc.txt", "real content", "")
	env.uploadFile(t, "blank.txt", "  ", "")

	env.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/files/doc.txt/embed", nil))
	env.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/files/blank.txt/embed", nil))

	m := env.srv.metrics
	if got := testutil.ToFloat64(m.ingestDocumentsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok ingestions: want 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.ingestDocumentsTotal.WithLabelValues("empty")); got != 1 {
		t.Errorf("empty ingestions: want 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.ingestChunksWritten); got != 1 {
		t.Errorf("chunks written: want 1, got %v", got)
	}
}

func TestMetrics_RegistrationIsHermetic(t *testing.T) {
	t.Parallel()

	// Two registries must accept the same metric set independently.
	newServerMetrics(prometheus.NewRegistry())
	newServerMetrics(prometheus.NewRegistry())
}
