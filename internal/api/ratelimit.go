package api

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"quotewizard/internal/observability"
)

const (
	visitorIdleTTL = 5 * time.Minute
	sweepEvery     = 30 * time.Second
)

// Rate limit scopes reported in X-RateLimit-Scope.
const (
	ScopeGeneral = "general"
	ScopeSubmit  = "submit"
)

// RateLimitConfig configures per-client token buckets. Quote submissions
// (POST .../sessions/{id}/submit and POST /api/v1/pricing/cart/quote) draw
// from their own bucket when SubmitRequestsPerSecond and SubmitBurst are set;
// every other request draws from the general bucket.
type RateLimitConfig struct {
	RequestsPerSecond       float64
	Burst                   int
	SubmitRequestsPerSecond float64
	SubmitBurst             int
	// TrustedProxies lists the proxies whose X-Forwarded-For header is honoured.
	TrustedProxies *TrustedProxyConfig
	// Metrics, when set, counts allowed and rejected requests.
	Metrics *observability.Metrics
}

// Enabled reports whether any bucket is configured.
func (c RateLimitConfig) Enabled() bool {
	return c.generalEnabled() || c.submitEnabled()
}

func (c RateLimitConfig) generalEnabled() bool { return c.RequestsPerSecond > 0 && c.Burst > 0 }
func (c RateLimitConfig) submitEnabled() bool {
	return c.SubmitRequestsPerSecond > 0 && c.SubmitBurst > 0
}

// isSubmitRequest reports whether r creates a quote request.
func isSubmitRequest(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	if r.URL.Path == "/api/v1/pricing/cart/quote" {
		return true
	}
	id := sessionIDFromPath(r.URL.Path)
	return id != "" && r.URL.Path == sessionsPath+"/"+id+"/submit"
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// bucketSet holds one limiter per client key for a single scope.
type bucketSet struct {
	scope string
	rps   float64
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newBucketSet(scope string, rps float64, burst int) *bucketSet {
	return &bucketSet{scope: scope, rps: rps, burst: burst, visitors: make(map[string]*visitor)}
}

func (b *bucketSet) get(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(b.rps), b.burst)}
		b.visitors[key] = v
	}
	v.lastSeen = now
	if now.Sub(b.lastSweep) > sweepEvery {
		for k, old := range b.visitors {
			if now.Sub(old.lastSeen) > visitorIdleTTL {
				delete(b.visitors, k)
			}
		}
		b.lastSweep = now
	}
	return v.limiter
}

// RateLimitMiddleware enforces the configured buckets. Every limited
// response carries X-RateLimit-Limit, X-RateLimit-Remaining,
// X-RateLimit-Reset and X-RateLimit-Scope; a rejected request gets 429
// with Retry-After.
func RateLimitMiddleware(cfg RateLimitConfig, logger *slog.Logger) Middleware {
	if !cfg.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = slog.Default()
	}
	var general, submit *bucketSet
	if cfg.generalEnabled() {
		general = newBucketSet(ScopeGeneral, cfg.RequestsPerSecond, cfg.Burst)
	}
	if cfg.submitEnabled() {
		submit = newBucketSet(ScopeSubmit, cfg.SubmitRequestsPerSecond, cfg.SubmitBurst)
	} else {
		submit = general
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b := general
			if isSubmitRequest(r) {
				b = submit
			}
			if b == nil {
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			lim := b.get(clientKeyWithProxies(r, cfg.TrustedProxies), now)
			h := w.Header()
			h.Set("X-RateLimit-Scope", b.scope)
			h.Set("X-RateLimit-Limit", strconv.FormatFloat(b.rps, 'f', -1, 64))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, int(math.Floor(lim.TokensAt(now))))))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(time.Duration(float64(time.Second)/b.rps)).Unix(), 10))

			if !lim.AllowN(now, 1) {
				cfg.Metrics.RecordRateLimit(false)
				logger.WarnContext(r.Context(), "rate limit exceeded", requestAttrs(r.Context(),
					"method", r.Method,
					"path", r.URL.Path,
					"scope", b.scope,
					"status", http.StatusTooManyRequests,
				)...)
				h.Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(1/b.rps)))))
				writeJSON(w, http.StatusTooManyRequests, apiError{Error: "too many requests"})
				return
			}
			cfg.Metrics.RecordRateLimit(true)
			next.ServeHTTP(w, r)
		})
	}
}

// TrustedProxyConfig holds the proxies allowed to set X-Forwarded-For.
type TrustedProxyConfig struct {
	CIDRs []netip.Prefix
}

// ParseTrustedProxies parses a comma-separated list of CIDRs or bare
// addresses; a bare address is trusted as a single-host prefix.
func ParseTrustedProxies(raw string) (*TrustedProxyConfig, error) {
	cfg := &TrustedProxyConfig{}
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			cfg.CIDRs = append(cfg.CIDRs, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: want CIDR or IP", s)
		}
		cfg.CIDRs = append(cfg.CIDRs, netip.PrefixFrom(a, a.BitLen()))
	}
	return cfg, nil
}

// IsTrusted reports whether remoteAddr (host:port) is a trusted proxy.
func (tc *TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	if tc == nil || len(tc.CIDRs) == 0 {
		return false
	}
	ap, err := netip.ParseAddrPort(remoteAddr)
	if err != nil {
		return false
	}
	addr := ap.Addr().Unmap()
	for _, cidr := range tc.CIDRs {
		if cidr.Contains(addr) {
			return true
		}
	}
	return false
}

// clientKeyWithProxies returns the client IP, reading the first
// X-Forwarded-For hop only when the peer is a trusted proxy.
func clientKeyWithProxies(r *http.Request, proxies *TrustedProxyConfig) string {
	if proxies.IsTrusted(r.RemoteAddr) {
		first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
