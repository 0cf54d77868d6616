package api

import (
	"context"

	"quotewizard/internal/observability"
)

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return observability.WithRequestID(ctx, requestID)
}

// RequestIDFromContext returns the request ID stored by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	return observability.RequestIDFromContext(ctx)
}

// requestAttrs appends the request and session IDs from ctx to attrs, for
// handlers that log through a plain slog.Logger.
func requestAttrs(ctx context.Context, attrs ...any) []any {
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := observability.SessionIDFromContext(ctx); id != "" {
		attrs = append(attrs, "session_id", id)
	}
	return attrs
}
