package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory metrics counters and gauges for HTTP
// requests, job lifecycle events, chunked upload activity, and WebSocket
// client connections. It coordinates concurrent writers via a RWMutex while
// exposing atomic gauges for active job and client tracking.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	jobEvents       map[string]uint64
	uploadEvents    map[string]uint64
	segmentCount    uint64
	activeJobs      atomic.Int64
	wsClients       atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		jobEvents:       make(map[string]uint64),
		uploadEvents:    make(map[string]uint64),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation
// pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// JobQueued records a job entering the queue.
func (r *Recorder) JobQueued() {
	r.incrementJobEvent("queued")
}

// JobStarted records a job picked up by a worker and increments the active
// job gauge.
func (r *Recorder) JobStarted() {
	r.incrementJobEvent("active")
	r.activeJobs.Add(1)
}

// JobCompleted records a successful job and decrements the active job gauge.
func (r *Recorder) JobCompleted() {
	r.incrementJobEvent("completed")
	r.decrementGauge(&r.activeJobs)
}

// JobFailed records a failed job and decrements the active job gauge,
// guarding against negative counts if the job never started.
func (r *Recorder) JobFailed() {
	r.incrementJobEvent("failed")
	r.decrementGauge(&r.activeJobs)
}

func (r *Recorder) incrementJobEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.jobEvents[normalized]++
	r.mu.Unlock()
}

// ObserveUploadEvent records an upload operation keyed by event name
// (e.g., "chunk_received", "merged", "direct").
func (r *Recorder) ObserveUploadEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.uploadEvents[normalized]++
	r.mu.Unlock()
}

// ObserveSegmentEncoded records the completion of a single encode segment.
func (r *Recorder) ObserveSegmentEncoded() {
	r.mu.Lock()
	r.segmentCount++
	r.mu.Unlock()
}

// WSClientConnected increments the connected WebSocket client gauge.
func (r *Recorder) WSClientConnected() {
	r.wsClients.Add(1)
}

// WSClientDisconnected decrements the connected WebSocket client gauge.
func (r *Recorder) WSClientDisconnected() {
	r.decrementGauge(&r.wsClients)
}

// ActiveJobs exposes the current gauge of concurrently running encode jobs.
func (r *Recorder) ActiveJobs() int64 {
	return r.activeJobs.Load()
}

// WSClients exposes the current number of connected WebSocket clients.
func (r *Recorder) WSClients() int64 {
	return r.wsClients.Load()
}

// JobCounts returns a copy of job lifecycle event counters for testing and
// reporting purposes.
func (r *Recorder) JobCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make(map[string]uint64, len(r.jobEvents))
	for k, v := range r.jobEvents {
		events[k] = v
	}
	return events
}

// UploadCounts returns a copy of upload event counters.
func (r *Recorder) UploadCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make(map[string]uint64, len(r.uploadEvents))
	for k, v := range r.uploadEvents {
		events[k] = v
	}
	return events
}

// Reset clears all counters and gauges on the recorder. It is intended for
// test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.jobEvents = make(map[string]uint64)
	r.uploadEvents = make(map[string]uint64)
	r.segmentCount = 0
	r.activeJobs.Store(0)
	r.wsClients.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting
// label sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	jobEvents := sortedKeys(r.jobEvents)
	uploadEvents := sortedKeys(r.uploadEvents)

	fmt.Fprintln(w, "# HELP transcode_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE transcode_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "transcode_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP transcode_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE transcode_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "transcode_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP transcode_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE transcode_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "transcode_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP transcode_job_events_total Job lifecycle events by state")
	fmt.Fprintln(w, "# TYPE transcode_job_events_total counter")
	for _, event := range jobEvents {
		value := r.jobEvents[event]
		fmt.Fprintf(w, "transcode_job_events_total{state=\"%s\"} %d\n", event, value)
	}

	fmt.Fprintln(w, "# HELP transcode_active_jobs Current number of encode jobs being processed")
	fmt.Fprintln(w, "# TYPE transcode_active_jobs gauge")
	fmt.Fprintf(w, "transcode_active_jobs %d\n", r.activeJobs.Load())

	fmt.Fprintln(w, "# HELP transcode_upload_events_total Upload operations by event")
	fmt.Fprintln(w, "# TYPE transcode_upload_events_total counter")
	for _, event := range uploadEvents {
		count := r.uploadEvents[event]
		fmt.Fprintf(w, "transcode_upload_events_total{event=\"%s\"} %d\n", event, count)
	}

	fmt.Fprintln(w, "# HELP transcode_segments_encoded_total Total encode segments completed")
	fmt.Fprintln(w, "# TYPE transcode_segments_encoded_total counter")
	fmt.Fprintf(w, "transcode_segments_encoded_total %d\n", r.segmentCount)

	fmt.Fprintln(w, "# HELP transcode_ws_clients Current number of connected WebSocket clients")
	fmt.Fprintln(w, "# TYPE transcode_ws_clients gauge")
	fmt.Fprintf(w, "transcode_ws_clients %d\n", r.wsClients.Load())
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if segment == "" {
		return false
	}
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	hexOnly := true
	for _, r := range segment {
		switch {
		case r >= '0' && r <= '9':
			digitCount++
		case r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F' || r == '-':
		default:
			hexOnly = false
		}
	}
	// Short hex ids like "deadbeefcafe" carry no digits at all.
	if hexOnly && len(segment) >= 8 {
		return true
	}
	return digitCount >= 3
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	for {
		current := gauge.Load()
		if current <= 0 {
			return
		}
		if gauge.CompareAndSwap(current, current-1) {
			return
		}
	}
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// JobQueued records a queued job on the default recorder.
func JobQueued() {
	defaultRecorder.JobQueued()
}

// JobStarted records a started job on the default recorder.
func JobStarted() {
	defaultRecorder.JobStarted()
}

// JobCompleted records a completed job on the default recorder.
func JobCompleted() {
	defaultRecorder.JobCompleted()
}

// JobFailed records a failed job on the default recorder.
func JobFailed() {
	defaultRecorder.JobFailed()
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
