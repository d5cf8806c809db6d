package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResponseWriterCapturesFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusTeapot {
		t.Fatalf("statusCode = %d, want %d", rw.statusCode, http.StatusTeapot)
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("recorder code = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestResponseWriterDefaultsToOKOnWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	if _, err := rw.Write([]byte("ok")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if !rw.written || rw.statusCode != http.StatusOK {
		t.Fatalf("written=%v statusCode=%d, want written=true statusCode=200", rw.written, rw.statusCode)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	// A path unique to this test keeps the label set isolated from other
	// tests sharing the global registry.
	req := httptest.NewRequest(http.MethodGet, "/middleware-test-unique", nil)
	rec := httptest.NewRecorder()

	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/middleware-test-unique", "204"))

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/middleware-test-unique", "204"))
	if after != before+1 {
		t.Fatalf("request counter = %v, want %v", after, before+1)
	}
}

func TestMetricsHandlerServesExposition(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected non-empty exposition body")
	}
}
