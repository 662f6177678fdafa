package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("GET", "/api/v1/usage", "200", 0.123)

	counter := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/usage", "200"))
	if counter != 1.0 {
		t.Errorf("Expected counter to be 1.0, got %f", counter)
	}
}

func TestRecordItemSaved(t *testing.T) {
	ItemsSavedTotal.Reset()

	RecordItemSaved("utility_save", 512)
	RecordItemSaved("utility_save", 1024)
	RecordItemSaved("vision_save", 2048)

	if got := testutil.ToFloat64(ItemsSavedTotal.WithLabelValues("utility_save")); got != 2.0 {
		t.Errorf("Expected utility_save counter to be 2.0, got %f", got)
	}
	if got := testutil.ToFloat64(ItemsSavedTotal.WithLabelValues("vision_save")); got != 1.0 {
		t.Errorf("Expected vision_save counter to be 1.0, got %f", got)
	}
}

func TestRecordGeneration(t *testing.T) {
	GenerationsTotal.Reset()

	RecordGeneration("email_reply", "success", 1.5)
	RecordGeneration("email_reply", "failed", 0.2)

	if got := testutil.ToFloat64(GenerationsTotal.WithLabelValues("email_reply", "success")); got != 1.0 {
		t.Errorf("Expected success counter to be 1.0, got %f", got)
	}
	if got := testutil.ToFloat64(GenerationsTotal.WithLabelValues("email_reply", "failed")); got != 1.0 {
		t.Errorf("Expected failed counter to be 1.0, got %f", got)
	}
}

func TestRecordStorageOperation(t *testing.T) {
	StorageOperationsTotal.Reset()
	StorageBytesTransferred.Reset()

	RecordStorageOperation("put", "success", 0.01, 4096)

	if got := testutil.ToFloat64(StorageOperationsTotal.WithLabelValues("put", "success")); got != 1.0 {
		t.Errorf("Expected storage counter to be 1.0, got %f", got)
	}
	if got := testutil.ToFloat64(StorageBytesTransferred.WithLabelValues("put")); got != 4096 {
		t.Errorf("Expected 4096 bytes transferred, got %f", got)
	}
}

func TestRecordUsageEvent(t *testing.T) {
	UsageEventsTotal.Reset()

	RecordUsageEvent("published", "success")

	if got := testutil.ToFloat64(UsageEventsTotal.WithLabelValues("published", "success")); got != 1.0 {
		t.Errorf("Expected usage event counter to be 1.0, got %f", got)
	}
}

func TestRecordError(t *testing.T) {
	ErrorsTotal.Reset()

	RecordError("quota", "storage")
	RecordError("quota", "storage")

	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("quota", "storage")); got != 2.0 {
		t.Errorf("Expected error counter to be 2.0, got %f", got)
	}
}

func TestServerExposesMetrics(t *testing.T) {
	QuotaDecisionsTotal.WithLabelValues("history", "Free Tier", "allowed").Inc()

	srv := NewServer(0)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "promptdesk_quota_decisions_total") {
		t.Error("Expected quota decision metric in exposition")
	}
}

func TestHealthReportsEveryComponent(t *testing.T) {
	srv := NewServer(0,
		HealthCheck{"redis", func(context.Context) error { return nil }},
		HealthCheck{"storage", func(context.Context) error { return nil }},
	)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var report healthReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("Failed to decode health report: %v", err)
	}
	if report.Status != "healthy" {
		t.Errorf("Expected healthy, got %q", report.Status)
	}
	if report.Components["redis"] != "ok" || report.Components["storage"] != "ok" {
		t.Errorf("Expected both components ok, got %v", report.Components)
	}
}

func TestHealthFailsWhenDependencyDown(t *testing.T) {
	srv := NewServer(0,
		HealthCheck{"redis", func(context.Context) error { return nil }},
		HealthCheck{"database", func(context.Context) error { return errors.New("connection refused") }},
	)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}
	var report healthReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("Failed to decode health report: %v", err)
	}
	if report.Status != "unhealthy" {
		t.Errorf("Expected unhealthy, got %q", report.Status)
	}
	if report.Components["database"] != "connection refused" {
		t.Errorf("Expected database failure to be reported, got %q", report.Components["database"])
	}
	if report.Components["redis"] != "ok" {
		t.Errorf("Expected redis ok, got %q", report.Components["redis"])
	}
}
