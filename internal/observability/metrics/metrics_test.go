package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecorderWrite(t *testing.T) {
	rec := NewRecorder()
	rec.ObserveRequest(http.MethodGet, "/api/videos", http.StatusOK, 25*time.Millisecond)
	rec.ObserveRequest(http.MethodGet, "/api/videos", http.StatusOK, 35*time.Millisecond)
	rec.UploadURLIssued()
	rec.UploadRejected("size")
	rec.TranscodeJobEvent("submitted")
	rec.TranscodeJobEvent("completed")
	rec.ReconcileOutcome("unchanged")
	rec.StreamRequest("manifest")
	rec.StreamedBytes(2048)
	rec.AccessDecision("directShare")

	var sb strings.Builder
	if err := rec.Write(&sb); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	output := sb.String()
	for _, want := range []string{
		`reelvault_http_requests_total{method="GET",path="/api/videos",status="200"} 2`,
		`reelvault_http_request_duration_seconds_count{method="GET",path="/api/videos",status="200"} 2`,
		"reelvault_upload_urls_issued_total 1",
		`reelvault_uploads_rejected_total{reason="size"} 1`,
		`reelvault_transcode_jobs_total{outcome="submitted"} 1`,
		"reelvault_transcode_jobs_active 0",
		`reelvault_reconcile_outcomes_total{outcome="unchanged"} 1`,
		`reelvault_stream_requests_total{kind="manifest"} 1`,
		"reelvault_streamed_bytes_total 2048",
		`reelvault_access_decisions_total{reason="directShare"} 1`,
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, output)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/api/videos":                          "/api/videos",
		"/api/videos/0b1d2c3e-4f5a":            "/api/videos/:id",
		"/embed/9a8b7c6d5e4f/index.m3u8":       "/embed/:id/index.m3u8",
		"/api/videos/0b1d2c3e-4f5a/upload-url": "/api/videos/:id/upload-url",
		"/healthz":                             "/healthz",
	}
	for input, want := range cases {
		if got := normalizePath(input); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	rec := NewRecorder()
	handler := rec.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/videos/abcdef1234", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var sb strings.Builder
	if err := rec.Write(&sb); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	want := `reelvault_http_requests_total{method="GET",path="/api/videos/:id",status="404"} 1`
	if !strings.Contains(sb.String(), want) {
		t.Fatalf("metrics output missing %q:\n%s", want, sb.String())
	}
}

func TestTranscodeActiveGaugeNeverNegative(t *testing.T) {
	rec := NewRecorder()
	rec.TranscodeJobEvent("failed")
	var sb strings.Builder
	if err := rec.Write(&sb); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	if !strings.Contains(sb.String(), "reelvault_transcode_jobs_active 0") {
		t.Fatalf("active gauge went negative:\n%s", sb.String())
	}
}
