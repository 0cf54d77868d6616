package observability

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsConfig holds configuration for the metrics subsystem.
type MetricsConfig struct {
	Enabled bool
	// Namespace prefixes every metric name (default: quotewizard).
	Namespace string
	// Version is reported by the info metric.
	Version string
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true, Namespace: "quotewizard", Version: "dev"}
}

// MetricsConfigFromEnv reads QUOTEWIZARD_METRICS_ENABLED and APP_VERSION.
func MetricsConfigFromEnv() MetricsConfig {
	cfg := DefaultMetricsConfig()
	if v := os.Getenv("QUOTEWIZARD_METRICS_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("APP_VERSION"); v != "" {
		cfg.Version = v
	}
	return cfg
}

// Metrics collects HTTP and wizard metrics in process and renders them in the
// Prometheus text exposition format. A nil *Metrics is valid and records nothing.
type Metrics struct {
	namespace string
	version   string

	mu            sync.RWMutex
	httpRequests  map[string]*atomic.Int64 // "method path status"
	httpDurations map[string]*durationWindow

	rateLimitAllowed  atomic.Int64
	rateLimitRejected atomic.Int64
	inFlight          atomic.Int64

	quotesGenerated atomic.Int64
	submissionsOK   atomic.Int64
	submissionsErr  atomic.Int64
	sessionsStarted atomic.Int64
	activeSessions  atomic.Int64
}

// durationWindow keeps the most recent samples for quantile estimation.
type durationWindow struct {
	mu      sync.Mutex
	samples []float64
	limit   int
}

func newDurationWindow(limit int) *durationWindow {
	return &durationWindow{samples: make([]float64, 0, limit), limit: limit}
}

func (d *durationWindow) add(v time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.samples) == d.limit {
		d.samples = append(d.samples[:0], d.samples[1:]...)
	}
	d.samples = append(d.samples, v.Seconds())
}

// snapshot returns the sorted samples and their sum.
func (d *durationWindow) snapshot() ([]float64, float64) {
	d.mu.Lock()
	sorted := append([]float64(nil), d.samples...)
	d.mu.Unlock()
	sort.Float64s(sorted)
	var sum float64
	for _, s := range sorted {
		sum += s
	}
	return sorted, sum
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := q * float64(len(sorted)-1)
	lo := int(idx)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

// NewMetrics creates a collector. It returns nil when cfg.Enabled is false.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "quotewizard"
	}
	return &Metrics{
		namespace:     ns,
		version:       cfg.Version,
		httpRequests:  make(map[string]*atomic.Int64),
		httpDurations: make(map[string]*durationWindow),
	}
}

// RecordHTTPRequest counts a finished request and records its latency.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	path = normalizePath(path)
	countKey := method + " " + path + " " + strconv.Itoa(status)
	durKey := method + " " + path

	m.mu.Lock()
	c, ok := m.httpRequests[countKey]
	if !ok {
		c = &atomic.Int64{}
		m.httpRequests[countKey] = c
	}
	w, ok := m.httpDurations[durKey]
	if !ok {
		w = newDurationWindow(1000)
		m.httpDurations[durKey] = w
	}
	m.mu.Unlock()

	c.Add(1)
	w.add(d)
}

// RecordRateLimit counts a rate limiter decision.
func (m *Metrics) RecordRateLimit(allowed bool) {
	if m == nil {
		return
	}
	if allowed {
		m.rateLimitAllowed.Add(1)
	} else {
		m.rateLimitRejected.Add(1)
	}
}

// RecordQuoteGenerated counts a pricing run on entry to the summary step.
func (m *Metrics) RecordQuoteGenerated() {
	if m != nil {
		m.quotesGenerated.Add(1)
	}
}

// RecordSubmission counts a submission attempt by outcome.
func (m *Metrics) RecordSubmission(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.submissionsOK.Add(1)
	} else {
		m.submissionsErr.Add(1)
	}
}

// SessionStarted increments the started counter and the active gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Add(1)
	m.activeSessions.Add(1)
}

// SessionEnded decrements the active session gauge.
func (m *Metrics) SessionEnded() {
	if m != nil {
		m.activeSessions.Add(-1)
	}
}

// ActiveSessions returns the current value of the active session gauge.
func (m *Metrics) ActiveSessions() int64 {
	if m == nil {
		return 0
	}
	return m.activeSessions.Load()
}

// normalizePath collapses numeric and UUID path segments to {id}.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			parts[i] = "{id}"
			continue
		}
		if len(part) == 36 && strings.Count(part, "-") == 4 {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// Handler serves the metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		if m == nil {
			return
		}
		m.WritePrometheus(w)
	})
}

// WritePrometheus renders all metrics to w.
func (m *Metrics) WritePrometheus(w io.Writer) {
	ns := m.namespace
	header := func(name, typ, help string) {
		fmt.Fprintf(w, "# HELP %s_%s %s\n# TYPE %s_%s %s\n", ns, name, help, ns, name, typ)
	}

	header("info", "gauge", "Application information")
	fmt.Fprintf(w, "%s_info{version=%q} 1\n\n", ns, m.version)

	m.mu.RLock()
	countKeys := sortedKeys(m.httpRequests)
	durKeys := sortedKeys(m.httpDurations)
	counts := make([]int64, len(countKeys))
	for i, k := range countKeys {
		counts[i] = m.httpRequests[k].Load()
	}
	windows := make([]*durationWindow, len(durKeys))
	for i, k := range durKeys {
		windows[i] = m.httpDurations[k]
	}
	m.mu.RUnlock()

	header("http_requests_total", "counter", "Total number of HTTP requests")
	for i, k := range countKeys {
		p := strings.SplitN(k, " ", 3)
		fmt.Fprintf(w, "%s_http_requests_total{method=%q,path=%q,status=%q} %d\n", ns, p[0], p[1], p[2], counts[i])
	}
	fmt.Fprintln(w)

	header("http_request_duration_seconds", "summary", "HTTP request duration in seconds")
	for i, k := range durKeys {
		p := strings.SplitN(k, " ", 2)
		sorted, sum := windows[i].snapshot()
		for _, q := range []float64{0.5, 0.9, 0.99} {
			fmt.Fprintf(w, "%s_http_request_duration_seconds{method=%q,path=%q,quantile=\"%.2f\"} %.6f\n",
				ns, p[0], p[1], q, quantile(sorted, q))
		}
		fmt.Fprintf(w, "%s_http_request_duration_seconds_sum{method=%q,path=%q} %.6f\n", ns, p[0], p[1], sum)
		fmt.Fprintf(w, "%s_http_request_duration_seconds_count{method=%q,path=%q} %d\n", ns, p[0], p[1], len(sorted))
	}
	fmt.Fprintln(w)

	header("rate_limit_requests_total", "counter", "Total rate limit decisions")
	fmt.Fprintf(w, "%s_rate_limit_requests_total{status=\"allowed\"} %d\n", ns, m.rateLimitAllowed.Load())
	fmt.Fprintf(w, "%s_rate_limit_requests_total{status=\"rejected\"} %d\n\n", ns, m.rateLimitRejected.Load())

	header("http_in_flight_requests", "gauge", "HTTP requests currently being served")
	fmt.Fprintf(w, "%s_http_in_flight_requests %d\n\n", ns, m.inFlight.Load())

	header("quotes_generated_total", "counter", "Quotes priced on entry to the summary step")
	fmt.Fprintf(w, "%s_quotes_generated_total %d\n\n", ns, m.quotesGenerated.Load())

	header("submissions_total", "counter", "Quote request submissions by result")
	fmt.Fprintf(w, "%s_submissions_total{result=\"success\"} %d\n", ns, m.submissionsOK.Load())
	fmt.Fprintf(w, "%s_submissions_total{result=\"failure\"} %d\n\n", ns, m.submissionsErr.Load())

	header("sessions_started_total", "counter", "Wizard sessions created")
	fmt.Fprintf(w, "%s_sessions_started_total %d\n\n", ns, m.sessionsStarted.Load())

	header("active_sessions", "gauge", "Wizard sessions currently held in memory")
	fmt.Fprintf(w, "%s_active_sessions %d\n", ns, m.activeSessions.Load())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MetricsMiddleware records count, latency and in-flight gauge for every
// request except /metrics itself.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			m.inFlight.Add(1)
			defer m.inFlight.Add(-1)

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.RecordHTTPRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
