// Package testutil provides helpers for quote wizard integration tests that
// run the full HTTP stack behind an httptest.Server.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"quotewizard/internal/api"
	"quotewizard/internal/audit"
	"quotewizard/internal/catalog"
	"quotewizard/internal/observability"
	"quotewizard/internal/storage"
	"quotewizard/internal/submission"
	"quotewizard/internal/wizard"
)

// DefaultAdminToken is the admin bearer token accepted by test servers.
const DefaultAdminToken = "integration-admin-token"

// TestServerConfig holds configuration for creating a test server.
type TestServerConfig struct {
	// AdminToken overrides DefaultAdminToken. Set DisableAdmin to run without one.
	AdminToken   string
	DisableAdmin bool
	// EnableRateLimit enables rate limiting middleware.
	EnableRateLimit bool
	// RateLimitConfig configures rate limiting if enabled.
	RateLimitConfig api.RateLimitConfig
	// EnableMetrics enables metrics collection and the /metrics route.
	EnableMetrics bool
	// Collaborator replaces the store-backed submission collaborator.
	Collaborator submission.Collaborator
	DashboardURL string
}

// DefaultTestServerConfig returns a basic test server configuration.
func DefaultTestServerConfig() TestServerConfig {
	return TestServerConfig{DashboardURL: "https://dashboard.example.com"}
}

// TestServerComponents holds all the components created for a test server.
type TestServerComponents struct {
	Server      *httptest.Server
	Store       *storage.MemoryStore
	Sessions    *wizard.Registry
	AuditLogger *audit.MemoryAuditLogger
	Metrics     *observability.Metrics
	Logger      observability.Logger
	AdminToken  string
	// Cleanup tears down the test server.
	Cleanup func()
}

// NewTestServer creates a fully wired test server. Summaries are ready
// immediately so tests never wait on the generating delay.
func NewTestServer(t *testing.T, cfg TestServerConfig) *TestServerComponents {
	t.Helper()

	store := storage.NewMemoryStore()
	logger := observability.NewLogger(observability.Config{
		Level:  "debug",
		Format: "json",
		Output: io.Discard,
	})

	var metrics *observability.Metrics
	if cfg.EnableMetrics {
		metrics = observability.NewMetrics(observability.MetricsConfig{
			Enabled:   true,
			Namespace: "quotewizard_test",
			Version:   "test",
		})
	}

	var tokenHash []byte
	token := ""
	if !cfg.DisableAdmin {
		token = cfg.AdminToken
		if token == "" {
			token = DefaultAdminToken
		}
		h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("hash admin token: %v", err)
		}
		tokenHash = h
	}

	cat := catalog.Default()
	sessions := wizard.NewRegistry(cat,
		wizard.WithMetrics(metrics),
		wizard.WithLogger(logger),
		wizard.WithControllerOptions(wizard.WithSummaryDelay(0)),
	)
	var collab submission.Collaborator = submission.StoreCollaborator{Store: store}
	if cfg.Collaborator != nil {
		collab = cfg.Collaborator
	}
	auditLogger := audit.NewMemoryAuditLogger(audit.WithMaxEvents(1000))

	mux := http.NewServeMux()
	api.NewServer(mux, api.Options{
		Store:          store,
		Catalog:        cat,
		Sessions:       sessions,
		Submitter:      submission.NewSubmitter(collab, cat, submission.WithLogger(logger), submission.WithMetrics(metrics)),
		Logger:         logger,
		Metrics:        metrics,
		AuditLogger:    auditLogger,
		AdminTokenHash: tokenHash,
		DashboardURL:   cfg.DashboardURL,
	}).RegisterRoutes()

	middlewares := []api.Middleware{api.RequestIDMiddleware(), api.LoggingMiddleware(logger.Slog())}
	if cfg.EnableMetrics {
		middlewares = append([]api.Middleware{observability.MetricsMiddleware(metrics)}, middlewares...)
	}
	if cfg.EnableRateLimit {
		rl := cfg.RateLimitConfig
		rl.Metrics = metrics
		middlewares = append(middlewares, api.RateLimitMiddleware(rl, logger.Slog()))
	}
	testServer := httptest.NewServer(api.ApplyMiddlewares(mux, middlewares...))

	return &TestServerComponents{
		Server:      testServer,
		Store:       store,
		Sessions:    sessions,
		AuditLogger: auditLogger,
		Metrics:     metrics,
		Logger:      logger,
		AdminToken:  token,
		Cleanup: func() {
			testServer.Close()
			_ = store.Close()
		},
	}
}

// AdminRequest creates an HTTP request carrying the admin bearer token.
func AdminRequest(method, url, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// MustRequest creates an HTTP request or fails the test.
func MustRequest(t *testing.T, method, url, token string, body io.Reader) *http.Request {
	t.Helper()
	req, err := AdminRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return req
}

// DoRequest performs an HTTP request and returns the response.
func DoRequest(t *testing.T, client *http.Client, req *http.Request) *http.Response {
	t.Helper()
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", expected, resp.StatusCode, body)
	}
}

// AssertHeader checks that the response has the expected header value.
func AssertHeader(t *testing.T, resp *http.Response, key, expected string) {
	t.Helper()
	if got := resp.Header.Get(key); got != expected {
		t.Errorf("expected header %s=%q, got %q", key, expected, got)
	}
}

// JSONBody creates an io.Reader from a JSON-serializable value.
func JSONBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return bytes.NewReader(data)
}

// ReadJSONResponse reads, closes and unmarshals a JSON response body.
func ReadJSONResponse(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to unmarshal response: %v\nBody: %s", err, string(data))
	}
}

// Client returns the test server's client.
func (c *TestServerComponents) Client() *http.Client {
	return c.Server.Client()
}

// URL returns the full URL for a given path.
func (c *TestServerComponents) URL(path string) string {
	return c.Server.URL + path
}

// Do sends method to path with an optional JSON body and admin token.
func (c *TestServerComponents) Do(t *testing.T, method, path string, body any, admin bool) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = JSONBody(t, body)
	}
	token := ""
	if admin {
		token = c.AdminToken
	}
	return DoRequest(t, c.Client(), MustRequest(t, method, c.URL(path), token, r))
}
