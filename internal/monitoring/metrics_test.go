package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest("http", OutcomeOK, 5*time.Millisecond)
	m.ObserveRequest("http", OutcomeOK, 7*time.Millisecond)
	m.ObserveRequest("grpc", OutcomeInvalid, time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("http", OutcomeOK)); got != 2 {
		t.Errorf("http ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("grpc", OutcomeInvalid)); got != 1 {
		t.Errorf("grpc invalid = %v, want 1", got)
	}
}

func TestMetrics_ObserveResult(t *testing.T) {
	m := NewMetrics()
	m.ObserveResult(2, 3, []string{"HIGH", "LOW"})
	m.ObserveResult(1, 0, []string{"HIGH"})

	if got := testutil.ToFloat64(m.levels.WithLabelValues("HIGH")); got != 2 {
		t.Errorf("HIGH = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.clusters); got != 1 {
		t.Errorf("clusters histogram series = %d, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("http", OutcomeOK, time.Second)
	m.ObserveResult(1, 1, nil)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveRequest("http", OutcomeFailed, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`buscluster_detections_total{outcome="computation_failure",transport="http"} 1`,
		"buscluster_detection_duration_seconds_bucket",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition lacks %q", want)
		}
	}
}
