package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quotewizard/internal/auth"
	"quotewizard/internal/observability"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get(requestIDHeader); got == "" || got != captured {
		t.Fatalf("header %q and context %q should carry the same generated id", got, captured)
	}
}

func TestRequestIDMiddlewareIncoming(t *testing.T) {
	tests := []struct {
		name    string
		inputID string
		keep    bool
	}{
		{"valid", "req-123", true},
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", true},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
		{"special chars", "req@123", false},
		{"html injection", "<script>alert(1)</script>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(requestIDHeader, tt.inputID)
			rr := serve(handler, req)

			if got := rr.Header().Get(requestIDHeader); (got == tt.inputID) != tt.keep {
				t.Errorf("response id = %q, keep=%v", got, tt.keep)
			}
			if captured == "" {
				t.Error("context should always carry an id")
			}
		})
	}
}

func TestSanitizeRequestID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"abc123", "abc123"},
		{"req_123.abc", "req_123.abc"},
		{"  padded  ", "padded"},
		{"", ""},
		{"has space", ""},
		{"semi;colon", ""},
		{"ünïcode", ""},
		{strings.Repeat("x", maxRequestIDLength), strings.Repeat("x", maxRequestIDLength)},
	}
	for _, tt := range tests {
		got, ok := sanitizeRequestID(tt.input)
		if got != tt.want || ok != (tt.want != "") {
			t.Errorf("sanitizeRequestID(%q) = %q, %v; want %q", tt.input, got, ok, tt.want)
		}
	}
}

func TestApplyMiddlewares(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+"-before")
				next.ServeHTTP(w, r)
				order = append(order, name+"-after")
			})
		}
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { order = append(order, "handler") })

	serve(ApplyMiddlewares(handler, mw("m1"), mw("m2")), httptest.NewRequest(http.MethodGet, "/", nil))

	want := "m1-before m2-before handler m2-after m1-after"
	if got := strings.Join(order, " "); got != want {
		t.Errorf("order = %q, want %q", got, want)
	}
}

func TestLoggingMiddlewareRecoversPanic(t *testing.T) {
	handler := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), RequestIDMiddleware(), LoggingMiddleware(newTestLogger()))

	rr := serve(handler, httptest.NewRequest(http.MethodPost, "/api/v1/quote/sessions", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body apiError
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.Error != "internal server error" {
		t.Fatalf("unexpected body %q (%v)", rr.Body.String(), err)
	}
}

func TestRateLimitMiddlewareBlocksAfterBurstExhausted(t *testing.T) {
	metrics := observability.NewMetrics(observability.DefaultMetricsConfig())
	cfg := RateLimitConfig{RequestsPerSecond: 5, Burst: 1, Metrics: metrics}
	handler := RateLimitMiddleware(cfg, newTestLogger())(okHandler())

	if rr := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil)); rr.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", rr.Code)
	}

	second := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", second.Code)
	}
	var resp apiError
	if err := json.Unmarshal(second.Body.Bytes(), &resp); err != nil || resp.Error != "too many requests" {
		t.Fatalf("unexpected body %q (%v)", second.Body.String(), err)
	}
	retry, err := strconv.Atoi(second.Header().Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Fatalf("Retry-After = %q", second.Header().Get("Retry-After"))
	}

	var sb strings.Builder
	metrics.WritePrometheus(&sb)
	if !strings.Contains(sb.String(), `rate_limit_requests_total{status="rejected"} 1`) {
		t.Errorf("rate limit decisions not recorded:\n%s", sb.String())
	}

	time.Sleep(300 * time.Millisecond)
	if rr := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil)); rr.Code != http.StatusOK {
		t.Fatalf("expected request after refill to succeed, got %d", rr.Code)
	}
}

func TestRateLimitMiddlewareHeaders(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 10, Burst: 5}, newTestLogger())(okHandler())
	rr := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rr.Header().Get("X-RateLimit-Limit"); got != "10" {
		t.Errorf("X-RateLimit-Limit = %q", got)
	}
	remaining, err := strconv.Atoi(rr.Header().Get("X-RateLimit-Remaining"))
	if err != nil || remaining < 0 || remaining > 5 {
		t.Errorf("X-RateLimit-Remaining = %q", rr.Header().Get("X-RateLimit-Remaining"))
	}
	reset, err := strconv.ParseInt(rr.Header().Get("X-RateLimit-Reset"), 10, 64)
	now := time.Now().Unix()
	if err != nil || reset < now || reset > now+2 {
		t.Errorf("X-RateLimit-Reset = %q (now %d)", rr.Header().Get("X-RateLimit-Reset"), now)
	}
}

func TestRateLimitMiddlewarePerClient(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 5, Burst: 1}, newTestLogger())(okHandler())

	from := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		return serve(handler, req).Code
	}
	if code := from("1.2.3.4:12345"); code != http.StatusOK {
		t.Fatalf("first request from client 1: %d", code)
	}
	if code := from("1.2.3.4:12345"); code != http.StatusTooManyRequests {
		t.Fatalf("second request from client 1: %d", code)
	}
	if code := from("5.6.7.8:54321"); code != http.StatusOK {
		t.Fatalf("first request from client 2: %d", code)
	}
}

func TestRateLimitMiddlewareTrustedProxy(t *testing.T) {
	proxies, err := ParseTrustedProxies("10.0.0.0/8")
	if err != nil {
		t.Fatal(err)
	}
	handler := RateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 5, Burst: 1, TrustedProxies: proxies}, newTestLogger())(okHandler())

	via := func(remote, xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		req.Header.Set("X-Forwarded-For", xff)
		return serve(handler, req).Code
	}
	// Same proxy, different forwarded clients: separate buckets.
	if code := via("10.1.1.1:80", "203.0.113.5"); code != http.StatusOK {
		t.Fatalf("client A: %d", code)
	}
	if code := via("10.1.1.1:80", "203.0.113.6, 10.1.1.1"); code != http.StatusOK {
		t.Fatalf("client B: %d", code)
	}
	if code := via("10.1.1.1:80", "203.0.113.5"); code != http.StatusTooManyRequests {
		t.Fatalf("client A again: %d", code)
	}
	// An untrusted peer cannot pick its bucket.
	if code := via("192.0.2.1:80", "198.51.100.1"); code != http.StatusOK {
		t.Fatalf("untrusted first: %d", code)
	}
	if code := via("192.0.2.1:80", "198.51.100.2"); code != http.StatusTooManyRequests {
		t.Fatalf("untrusted peer should share one bucket: %d", code)
	}
}

func TestParseTrustedProxies(t *testing.T) {
	cfg, err := ParseTrustedProxies(" 10.0.0.0/8, ,192.168.0.0/16")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.CIDRs) != 2 {
		t.Fatalf("CIDRs = %v", cfg.CIDRs)
	}
	if !cfg.IsTrusted("192.168.4.4:443") || cfg.IsTrusted("172.16.0.1:443") || cfg.IsTrusted("garbage") {
		t.Error("IsTrusted mismatch")
	}
	if _, err := ParseTrustedProxies("10.0.0.0/33"); err == nil {
		t.Error("expected error for invalid CIDR")
	}

	single, err := ParseTrustedProxies("203.0.113.7, 10.1.2.3/8, ::1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"203.0.113.7/32", "10.0.0.0/8", "::1/128"}
	for i, p := range single.CIDRs {
		if p.String() != want[i] {
			t.Errorf("CIDRs[%d] = %s, want %s", i, p, want[i])
		}
	}
	if !single.IsTrusted("203.0.113.7:80") || single.IsTrusted("203.0.113.8:80") {
		t.Error("bare address should trust exactly one host")
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{}, newTestLogger())(okHandler())
	for i := 0; i < 10; i++ {
		if rr := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil)); rr.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rr.Code)
		}
	}
}

func TestRateLimitConfigEnabled(t *testing.T) {
	tests := []struct {
		cfg  RateLimitConfig
		want bool
	}{
		{RateLimitConfig{RequestsPerSecond: 10, Burst: 5}, true},
		{RateLimitConfig{RequestsPerSecond: 0, Burst: 5}, false},
		{RateLimitConfig{RequestsPerSecond: 10, Burst: 0}, false},
		{RateLimitConfig{RequestsPerSecond: -1, Burst: 5}, false},
		{RateLimitConfig{RequestsPerSecond: 10, Burst: -1}, false},
	}
	for _, tt := range tests {
		if got := tt.cfg.Enabled(); got != tt.want {
			t.Errorf("%+v.Enabled() = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}

func TestRateLimitMiddlewareSubmitScope(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 100, Burst: 100, SubmitRequestsPerSecond: 0.01, SubmitBurst: 1}
	handler := RateLimitMiddleware(cfg, newTestLogger())(okHandler())

	submit := func(path string) *httptest.ResponseRecorder {
		return serve(handler, httptest.NewRequest(http.MethodPost, path, nil))
	}
	rr := submit("/api/v1/quote/sessions/abc/submit")
	if rr.Code != http.StatusOK || rr.Header().Get("X-RateLimit-Scope") != ScopeSubmit {
		t.Fatalf("first submit: %d scope %q", rr.Code, rr.Header().Get("X-RateLimit-Scope"))
	}
	// Cart quotes share the submit bucket.
	if rr := submit("/api/v1/pricing/cart/quote"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second submit should be limited, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "0.01" {
		t.Errorf("submit X-RateLimit-Limit = %q", got)
	}

	// Catalog reads and other session calls still use the general bucket.
	for _, path := range []string{"/api/v1/catalog", "/api/v1/quote/sessions/abc"} {
		rr := serve(handler, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK || rr.Header().Get("X-RateLimit-Scope") != ScopeGeneral {
			t.Errorf("GET %s: %d scope %q", path, rr.Code, rr.Header().Get("X-RateLimit-Scope"))
		}
	}
	if rr := submit("/api/v1/quote/sessions/abc/next"); rr.Code != http.StatusOK {
		t.Errorf("POST next should use the general bucket, got %d", rr.Code)
	}
}

func TestRateLimitMiddlewareSubmitOnly(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{SubmitRequestsPerSecond: 0.01, SubmitBurst: 1}, newTestLogger())(okHandler())
	for i := 0; i < 5; i++ {
		rr := serve(handler, httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil))
		if rr.Code != http.StatusOK || rr.Header().Get("X-RateLimit-Scope") != "" {
			t.Fatalf("unlimited read %d: %d", i, rr.Code)
		}
	}
	serve(handler, httptest.NewRequest(http.MethodPost, "/api/v1/pricing/cart/quote", nil))
	if rr := serve(handler, httptest.NewRequest(http.MethodPost, "/api/v1/pricing/cart/quote", nil)); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}

func TestIsSubmitRequest(t *testing.T) {
	tests := []struct {
		method, path string
		want         bool
	}{
		{http.MethodPost, "/api/v1/quote/sessions/s1/submit", true},
		{http.MethodPost, "/api/v1/pricing/cart/quote", true},
		{http.MethodGet, "/api/v1/quote/sessions/s1/submit", false},
		{http.MethodPost, "/api/v1/quote/sessions/s1/submit/extra", false},
		{http.MethodPost, "/api/v1/quote/sessions//submit", false},
		{http.MethodPost, "/api/v1/pricing/cart", false},
	}
	for _, tt := range tests {
		if got := isSubmitRequest(httptest.NewRequest(tt.method, tt.path, nil)); got != tt.want {
			t.Errorf("isSubmitRequest(%s %s) = %v, want %v", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestLoggingMiddlewareBindsSessionID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	handler := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.SessionIDFromContext(r.Context())
		if r.URL.Path == sessionsPath {
			w.Header().Set("Location", sessionsPath+"/created-1")
			w.WriteHeader(http.StatusCreated)
		}
	}), RequestIDMiddleware(), LoggingMiddleware(logger))

	serve(handler, httptest.NewRequest(http.MethodPost, "/api/v1/quote/sessions/sess-42/next", nil))
	if seen != "sess-42" {
		t.Errorf("handler saw session %q", seen)
	}
	line := lastLogLine(t, &buf)
	if line["session_id"] != "sess-42" || line["request_id"] == nil {
		t.Errorf("log line = %v", line)
	}

	serve(handler, httptest.NewRequest(http.MethodPost, sessionsPath, nil))
	if line := lastLogLine(t, &buf); line["session_id"] != "created-1" {
		t.Errorf("create log line = %v", line)
	}

	serve(handler, httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil))
	if line := lastLogLine(t, &buf); line["session_id"] != nil {
		t.Errorf("catalog request should not carry a session: %v", line)
	}
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("decode log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestSessionIDFromPath(t *testing.T) {
	tests := map[string]string{
		"/api/v1/quote/sessions/abc":        "abc",
		"/api/v1/quote/sessions/abc/submit": "abc",
		"/api/v1/quote/sessions":            "",
		"/api/v1/quote/sessions/":           "",
		"/api/v1/catalog":                   "",
	}
	for path, want := range tests {
		if got := sessionIDFromPath(path); got != want {
			t.Errorf("sessionIDFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func testTokenHash(t *testing.T, token string) []byte {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

func TestAdminAuthMiddleware(t *testing.T) {
	const token = "correct-horse-battery"
	hash := testTokenHash(t, token)

	var admin *auth.Admin
	protected := AdminAuthMiddleware(hash, newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin = auth.AdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"wrong token", "Bearer not-the-token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/quote-requests", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := serve(protected, req)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusOK && (admin == nil || admin.Name != "admin") {
				t.Error("admin principal missing from context")
			}
			if tt.want == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate challenge")
			}
		})
	}
}

func TestAdminAuthMiddlewareDisabledWithoutHash(t *testing.T) {
	protected := AdminAuthMiddleware(nil, newTestLogger())(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	req.Header.Set("Authorization", "Bearer anything-at-all")
	if rr := serve(protected, req); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
