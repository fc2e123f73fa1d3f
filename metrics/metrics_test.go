package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewIsolatedRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	a := New()
	b := New()

	a.RecordResolution("single", "secondary")
	if got := testutil.ToFloat64(a.Resolutions.WithLabelValues("single", "secondary")); got != 1 {
		t.Errorf("a resolutions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.Resolutions.WithLabelValues("single", "secondary")); got != 0 {
		t.Errorf("b resolutions = %v, want 0", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordCatalogRequest("search", "ok")
	m.RecordResolution("batch", "none")
	m.RecordBatchSize(3)
	m.RecordDuration("single", time.Second)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.RecordCatalogRequest("search", "error")
	m.RecordBatchSize(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		"streamfinder_catalog_requests_total",
		"streamfinder_batch_items",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in exposition", name)
		}
	}
}
