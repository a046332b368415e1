// Package metrics exposes the process counters behind /metrics in the
// Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type requestLabel struct {
	Method string
	Path   string
	Status int
}

type durationStats struct {
	Count uint64
	Sum   float64
}

// Recorder aggregates counters for HTTP traffic and the upload, transcode,
// reconcile, and streaming pipelines.
type Recorder struct {
	mu sync.RWMutex

	requestCounts    map[requestLabel]uint64
	requestDurations map[requestLabel]durationStats

	uploadURLsIssued  uint64
	uploadsCompleted  uint64
	uploadsRejected   map[string]uint64
	transcodeJobs     map[string]uint64
	activeTranscodes  int64
	reconcileOutcomes map[string]uint64
	streamRequests    map[string]uint64
	streamedBytes     uint64
	accessDecisions   map[string]uint64
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		requestCounts:     make(map[requestLabel]uint64),
		requestDurations:  make(map[requestLabel]durationStats),
		uploadsRejected:   make(map[string]uint64),
		transcodeJobs:     make(map[string]uint64),
		reconcileOutcomes: make(map[string]uint64),
		streamRequests:    make(map[string]uint64),
		accessDecisions:   make(map[string]uint64),
	}
}

var defaultRecorder = NewRecorder()

// Default returns the shared Recorder used by the package-level helpers.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest records a completed HTTP request.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	label := requestLabel{Method: method, Path: normalizePath(path), Status: status}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCounts[label]++
	stats := r.requestDurations[label]
	stats.Count++
	stats.Sum += duration.Seconds()
	r.requestDurations[label] = stats
}

// UploadURLIssued records a presigned upload URL being handed out.
func (r *Recorder) UploadURLIssued() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.uploadURLsIssued++
	r.mu.Unlock()
}

// UploadRejected records an upload request refused before presigning, keyed
// by reason ("size", "type", "path").
func (r *Recorder) UploadRejected(reason string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.uploadsRejected[reason]++
	r.mu.Unlock()
}

// UploadCompleted records a finished upload handoff.
func (r *Recorder) UploadCompleted() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.uploadsCompleted++
	r.mu.Unlock()
}

// TranscodeJobEvent records a transcoding lifecycle event, keyed by outcome
// ("submitted", "completed", "failed").
func (r *Recorder) TranscodeJobEvent(outcome string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.transcodeJobs[outcome]++
	switch outcome {
	case "submitted":
		r.activeTranscodes++
	case "completed", "failed":
		if r.activeTranscodes > 0 {
			r.activeTranscodes--
		}
	}
	r.mu.Unlock()
}

// ReconcileOutcome records the result of reconciling one video against its
// transcoding job ("completed", "failed", "unchanged", "error").
func (r *Recorder) ReconcileOutcome(outcome string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.reconcileOutcomes[outcome]++
	r.mu.Unlock()
}

// StreamRequest records a playback fetch, keyed by kind ("manifest",
// "segment", "embed", "denied").
func (r *Recorder) StreamRequest(kind string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.streamRequests[kind]++
	r.mu.Unlock()
}

// StreamedBytes adds to the total bytes proxied to players.
func (r *Recorder) StreamedBytes(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.mu.Lock()
	r.streamedBytes += uint64(n)
	r.mu.Unlock()
}

// AccessDecision records the reason a viewer was granted access.
func (r *Recorder) AccessDecision(reason string) {
	if r == nil || reason == "" {
		return
	}
	r.mu.Lock()
	r.accessDecisions[reason]++
	r.mu.Unlock()
}

// Write renders the recorder contents in the Prometheus text exposition
// format.
func (r *Recorder) Write(w io.Writer) error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := writeHeader(w, "reelvault_http_requests_total", "counter", "Total HTTP requests processed."); err != nil {
		return err
	}
	for _, label := range sortedRequestLabels(r.requestCounts) {
		if _, err := fmt.Fprintf(w, "reelvault_http_requests_total{method=%q,path=%q,status=\"%d\"} %d\n",
			label.Method, label.Path, label.Status, r.requestCounts[label]); err != nil {
			return err
		}
	}

	if err := writeHeader(w, "reelvault_http_request_duration_seconds", "summary", "HTTP request durations."); err != nil {
		return err
	}
	for _, label := range sortedRequestLabels(r.requestDurations) {
		stats := r.requestDurations[label]
		if _, err := fmt.Fprintf(w, "reelvault_http_request_duration_seconds_sum{method=%q,path=%q,status=\"%d\"} %f\n",
			label.Method, label.Path, label.Status, stats.Sum); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "reelvault_http_request_duration_seconds_count{method=%q,path=%q,status=\"%d\"} %d\n",
			label.Method, label.Path, label.Status, stats.Count); err != nil {
			return err
		}
	}

	if err := writeHeader(w, "reelvault_upload_urls_issued_total", "counter", "Presigned upload URLs issued."); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "reelvault_upload_urls_issued_total %d\n", r.uploadURLsIssued); err != nil {
		return err
	}

	if err := writeHeader(w, "reelvault_uploads_rejected_total", "counter", "Upload requests rejected before presigning."); err != nil {
		return err
	}
	if err := writeLabeledCounter(w, "reelvault_uploads_rejected_total", "reason", r.uploadsRejected); err != nil {
		return err
	}

	if err := writeHeader(w, "reelvault_uploads_completed_total", "counter", "Uploads handed off to transcoding."); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "reelvault_uploads_completed_total %d\n", r.uploadsCompleted); err != nil {
		return err
	}

	if err := writeHeader(w, "reelvault_transcode_jobs_total", "counter", "Transcoding job lifecycle events."); err != nil {
		return err
	}
	if err := writeLabeledCounter(w, "reelvault_transcode_jobs_total", "outcome", r.transcodeJobs); err != nil {
		return err
	}

	if err := writeHeader(w, "reelvault_transcode_jobs_active", "gauge", "Transcoding jobs submitted but not yet terminal."); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "reelvault_transcode_jobs_active %d\n", r.activeTranscodes); err != nil {
		return err
	}

	if err := writeHeader(w, "reelvault_reconcile_outcomes_total", "counter", "Per-video reconciliation results."); err != nil {
		return err
	}
	if err := writeLabeledCounter(w, "reelvault_reconcile_outcomes_total", "outcome", r.reconcileOutcomes); err != nil {
		return err
	}

	if err := writeHeader(w, "reelvault_stream_requests_total", "counter", "Playback fetches by kind."); err != nil {
		return err
	}
	if err := writeLabeledCounter(w, "reelvault_stream_requests_total", "kind", r.streamRequests); err != nil {
		return err
	}

	if err := writeHeader(w, "reelvault_streamed_bytes_total", "counter", "Bytes proxied to players."); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "reelvault_streamed_bytes_total %d\n", r.streamedBytes); err != nil {
		return err
	}

	if err := writeHeader(w, "reelvault_access_decisions_total", "counter", "Granted playback access by reason."); err != nil {
		return err
	}
	return writeLabeledCounter(w, "reelvault_access_decisions_total", "reason", r.accessDecisions)
}

// Handler serves the recorder in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if err := r.Write(w); err != nil {
			http.Error(w, "failed to render metrics", http.StatusInternalServerError)
		}
	})
}

func writeHeader(w io.Writer, name, kind, help string) error {
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", name, help); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	return err
}

func writeLabeledCounter(w io.Writer, name, labelName string, counts map[string]uint64) error {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, err := fmt.Fprintf(w, "%s{%s=%q} %d\n", name, labelName, key, counts[key]); err != nil {
			return err
		}
	}
	return nil
}

func sortedRequestLabels[V any](m map[requestLabel]V) []requestLabel {
	labels := make([]requestLabel, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Method != labels[j].Method {
			return labels[i].Method < labels[j].Method
		}
		if labels[i].Path != labels[j].Path {
			return labels[i].Path < labels[j].Path
		}
		return labels[i].Status < labels[j].Status
	})
	return labels
}

// normalizePath collapses identifier segments so metric cardinality stays
// bounded.
func normalizePath(path string) string {
	if path == "" || path == "/" {
		return path
	}
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if looksLikeIdentifier(segment) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) < 8 {
		return false
	}
	hasDigit := false
	for _, r := range segment {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'f', r >= 'A' && r <= 'F', r == '-':
		default:
			return false
		}
	}
	return hasDigit
}

// Package-level helpers backed by the default recorder.

func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

func UploadURLIssued()                { defaultRecorder.UploadURLIssued() }
func UploadRejected(reason string)    { defaultRecorder.UploadRejected(reason) }
func UploadCompleted()                { defaultRecorder.UploadCompleted() }
func TranscodeJobEvent(outcome string) { defaultRecorder.TranscodeJobEvent(outcome) }
func ReconcileOutcome(outcome string) { defaultRecorder.ReconcileOutcome(outcome) }
func StreamRequest(kind string)       { defaultRecorder.StreamRequest(kind) }
func StreamedBytes(n int64)           { defaultRecorder.StreamedBytes(n) }
func AccessDecision(reason string)    { defaultRecorder.AccessDecision(reason) }

// Handler exposes the default recorder.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
