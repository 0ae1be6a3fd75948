package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/acollet/memwatch/internal/detector"
	"github.com/acollet/memwatch/internal/logging"
	"github.com/acollet/memwatch/internal/procmem"
	"github.com/acollet/memwatch/internal/report"
)

// TestNewMetrics tests the Metrics constructor.
func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.handler == nil {
		t.Error("Metrics.handler should be initialized")
	}
}

// TestNewMetrics_IndependentRegistries verifies that two instances can
// coexist; each owns its registry, so registration never collides.
func TestNewMetrics_IndependentRegistries(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("second NewMetrics panicked: %v", r)
		}
	}()
	_ = NewMetrics()
	_ = NewMetrics()
}

// TestMetrics_ObserveSample tests the sampling-cycle gauges.
func TestMetrics_ObserveSample(t *testing.T) {
	m := NewMetrics()

	snap := procmem.Snapshot{Timestamp: time.Now(), RSSMB: 150.5, VMSMB: 300, Threads: 12}
	result := detector.Result{
		LeakDetected:       true,
		GrowthRateMBPerMin: 12.5,
		Severity:           detector.SeverityHigh,
	}
	m.ObserveSample(snap, result, true)

	body := scrape(t, m)

	for _, want := range []string{
		"memwatch_rss_mb 150.5",
		"memwatch_vms_mb 300",
		"memwatch_threads 12",
		"memwatch_growth_rate_mb_per_min 12.5",
		"memwatch_leak_detected 1",
		"memwatch_samples_total 1",
		"memwatch_leaks_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition should contain %q", want)
		}
	}
}

// TestMetrics_ObserveSample_NotAnalyzed verifies that cycles before the
// analysis window fills only touch the raw gauges.
func TestMetrics_ObserveSample_NotAnalyzed(t *testing.T) {
	m := NewMetrics()

	m.ObserveSample(procmem.Snapshot{RSSMB: 100}, detector.Result{}, false)

	body := scrape(t, m)
	if !strings.Contains(body, "memwatch_samples_total 1") {
		t.Error("samples counter should advance on every cycle")
	}
	if !strings.Contains(body, "memwatch_leaks_total 0") {
		t.Error("leak counter must not advance without an analysis")
	}
}

// TestMetrics_IncrementDecrementActiveRequests tests the active requests gauge.
func TestMetrics_IncrementDecrementActiveRequests(t *testing.T) {
	m := NewMetrics()

	m.IncrementActiveRequests()

	body := scrape(t, m)
	if !strings.Contains(body, "memwatch_active_requests 1") {
		t.Error("active requests gauge should read 1 while in flight")
	}
	if !strings.Contains(body, "memwatch_requests_total 1") {
		t.Error("requests counter should advance on increment")
	}

	m.DecrementActiveRequests()
	if !strings.Contains(scrape(t, m), "memwatch_active_requests 0") {
		t.Error("active requests gauge should return to 0")
	}
}

// TestMetrics_WritePrometheus tests the Prometheus metrics endpoint.
func TestMetrics_WritePrometheus(t *testing.T) {
	m := NewMetrics()
	body := scrape(t, m)

	t.Run("Contains process gauges", func(t *testing.T) {
		if !strings.Contains(body, "memwatch_rss_mb") {
			t.Error("metrics output should contain memwatch_rss_mb")
		}
	})

	t.Run("Contains total requests metric", func(t *testing.T) {
		if !strings.Contains(body, "memwatch_requests_total") {
			t.Error("metrics output should contain memwatch_requests_total")
		}
	})

	t.Run("Contains Go runtime metrics", func(t *testing.T) {
		if !strings.Contains(body, "go_") {
			t.Error("metrics output should contain Go runtime metrics")
		}
	})
}

// TestServer_metricsMiddleware tests the metrics tracking middleware.
func TestServer_metricsMiddleware(t *testing.T) {
	s := newTestServer(report.Report{})

	t.Run("Next handler is called", func(t *testing.T) {
		nextCalled := false
		handler := s.metricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest("GET", "/test", http.NoBody))

		if !nextCalled {
			t.Error("next handler was not called")
		}
	})

	t.Run("Requests are counted", func(t *testing.T) {
		handler := s.metricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest("GET", "/test", http.NoBody))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if !strings.Contains(scrape(t, s.metrics), "memwatch_active_requests 0") {
			t.Error("in-flight gauge should be balanced after the request")
		}
	})
}

// TestServer_handleMetrics tests the /metrics endpoint handler.
func TestServer_handleMetrics(t *testing.T) {
	t.Run("GET returns metrics", func(t *testing.T) {
		s := newTestServer(report.Report{})

		rec := httptest.NewRecorder()
		s.handleMetrics(rec, httptest.NewRequest("GET", "/metrics", http.NoBody))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if !strings.Contains(rec.Body.String(), "memwatch_") {
			t.Error("response should contain memwatch metrics")
		}
	})

	for _, method := range []string{"POST", "PUT"} {
		t.Run(method+" returns method not allowed", func(t *testing.T) {
			s := newTestServer(report.Report{})

			rec := httptest.NewRecorder()
			s.handleMetrics(rec, httptest.NewRequest(method, "/metrics", http.NoBody))

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
			}
		})
	}
}

// TestServer_handleReport tests the /report endpoint handler.
func TestServer_handleReport(t *testing.T) {
	s := newTestServer(report.Report{
		SnapshotCount: 7,
		MemoryEndMB:   123.5,
	})

	rec := httptest.NewRecorder()
	s.handleReport(rec, httptest.NewRequest("GET", "/report", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded["snapshots_count"].(float64) != 7 {
		t.Errorf("snapshots_count = %v, want 7", decoded["snapshots_count"])
	}
}

// TestServer_handleHealth tests the /healthz endpoint handler.
func TestServer_handleHealth(t *testing.T) {
	s := newTestServer(report.Report{})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest("GET", "/healthz", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

// scrape returns the current Prometheus exposition as a string.
func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.WritePrometheus(rec, httptest.NewRequest("GET", "/metrics", http.NoBody))
	return rec.Body.String()
}

// staticReporter serves a fixed report.
type staticReporter struct{ rep report.Report }

func (r staticReporter) Report() report.Report { return r.rep }

func newTestServer(rep report.Report) *Server {
	return New(":0", staticReporter{rep: rep}, NewMetrics(), newTestLogger())
}

// testLogger is a minimal logger for testing that implements logging.Logger.
type testLogger struct{}

func newTestLogger() *testLogger                                  { return &testLogger{} }
func (l *testLogger) Info(_ string, _ ...logging.Field)           {}
func (l *testLogger) Error(_ string, _ error, _ ...logging.Field) {}
func (l *testLogger) Debug(_ string, _ ...logging.Field)          {}
func (l *testLogger) Printf(_ string, _ ...any)                   {}
func (l *testLogger) Println(_ ...any)                            {}
