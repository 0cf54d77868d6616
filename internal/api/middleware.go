package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"quotewizard/internal/auth"
	"quotewizard/internal/observability"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 64
	sessionsPath       = "/api/v1/quote/sessions"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// ApplyMiddlewares wraps h so that middlewares[0] runs first.
func ApplyMiddlewares(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestIDMiddleware keeps a well-formed incoming X-Request-ID and mints a
// UUID otherwise. The ID is echoed in the response and stored in the context.
func RequestIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := sanitizeRequestID(r.Header.Get(requestIDHeader))
			if !ok {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
		})
	}
}

func isRequestIDRune(c rune) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}

func sanitizeRequestID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxRequestIDLength {
		return "", false
	}
	if strings.IndexFunc(id, func(c rune) bool { return !isRequestIDRune(c) }) >= 0 {
		return "", false
	}
	return id, true
}

// sessionIDFromPath returns the {id} segment of /api/v1/quote/sessions/{id}[/...].
func sessionIDFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, sessionsPath+"/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}

// LoggingMiddleware writes one structured line per request and runs the
// handler inside a Sentry transaction. Requests addressed to a wizard session
// carry its ID in the context, the log line and the Sentry scope; a newly
// created session is picked up from the Location header. A handler panic is
// reported and answered with a JSON 500.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			hub := sentry.GetHubFromContext(ctx)
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
				ctx = sentry.SetHubOnContext(ctx, hub)
			}
			if id := sessionIDFromPath(r.URL.Path); id != "" {
				ctx = observability.WithSessionID(ctx, id)
				hub.Scope().SetTag("session_id", id)
			}

			tx := sentry.StartTransaction(ctx, r.Method+" "+r.URL.Path,
				sentry.WithOpName("http.server"),
				sentry.ContinueFromRequest(r),
				sentry.WithTransactionSource(sentry.SourceURL),
			)
			defer tx.Finish()
			r = r.WithContext(tx.Context())
			hub.Scope().SetRequest(r)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				tx.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), p)
				logger.ErrorContext(r.Context(), "panic recovered",
					requestAttrs(r.Context(), "method", r.Method, "path", r.URL.Path, "panic", p)...)
				writeJSON(rec, http.StatusInternalServerError, apiError{Error: "internal server error"})
			}()

			next.ServeHTTP(rec, r)

			ctx = r.Context()
			if observability.SessionIDFromContext(ctx) == "" && r.Method == http.MethodPost && r.URL.Path == sessionsPath {
				if id := sessionIDFromPath(rec.Header().Get("Location")); id != "" {
					ctx = observability.WithSessionID(ctx, id)
					hub.Scope().SetTag("session_id", id)
				}
			}
			tx.Status = sentry.HTTPtoSpanStatus(rec.status)
			logRequest(ctx, logger, r, rec.status, time.Since(start))
		})
	}
}

func logRequest(ctx context.Context, logger *slog.Logger, r *http.Request, status int, d time.Duration) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "request completed", requestAttrs(ctx,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration_ms", d.Milliseconds(),
	)...)
}

// AdminAuthMiddleware requires a bearer token matching the bcrypt hash.
// With an empty hash every request is refused.
func AdminAuthMiddleware(tokenHash []byte, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	deny := func(w http.ResponseWriter, r *http.Request, code int, body apiError, reason string) {
		logger.WarnContext(r.Context(), "authentication failed",
			requestAttrs(r.Context(), "method", r.Method, "path", r.URL.Path, "reason", reason)...)
		if code == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", `Bearer realm="quotewizard"`)
		}
		writeJSON(w, code, body)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(tokenHash) == 0 {
				deny(w, r, http.StatusForbidden, apiError{Error: "admin access disabled"}, "admin token not configured")
				return
			}
			token, err := auth.ParseBearer(r.Header.Get("Authorization"))
			if err != nil {
				deny(w, r, http.StatusUnauthorized, apiError{Error: "unauthorized", Detail: err.Error()}, err.Error())
				return
			}
			if err := auth.VerifyToken(token, tokenHash); err != nil {
				deny(w, r, http.StatusUnauthorized, apiError{Error: "unauthorized"}, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAdmin(r.Context(), &auth.Admin{Name: "admin"})))
		})
	}
}
