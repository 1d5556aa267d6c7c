package logger

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
)

const (
	// CorrelationIDHeader is the HTTP header carrying the correlation id.
	CorrelationIDHeader = "X-Correlation-ID"
	// CorrelationIDMetadataKey is the gRPC metadata key carrying the correlation id.
	CorrelationIDMetadataKey = "x-correlation-id"
)

type contextKey string

const correlationIDContextKey contextKey = "correlation_id"

// WithCorrelationIDContext stores a correlation id on the context.
func WithCorrelationIDContext(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey, correlationID)
}

// GetCorrelationIDFromContext returns the correlation id stored on ctx, or "".
func GetCorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDContextKey).(string); ok {
		return id
	}
	return ""
}

// EnsureCorrelationID returns ctx carrying a correlation id, taking it from the
// context, then from incoming gRPC metadata, then generating a fresh one.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := GetCorrelationIDFromContext(ctx); id != "" {
		return ctx, id
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(CorrelationIDMetadataKey); len(values) > 0 {
			if _, err := uuid.Parse(values[0]); err == nil {
				return WithCorrelationIDContext(ctx, values[0]), values[0]
			}
		}
	}

	id := uuid.New().String()
	return WithCorrelationIDContext(ctx, id), id
}

// EnsureHTTPCorrelationID makes sure the request carries a valid UUID
// correlation id in both its header and its context.
func EnsureHTTPCorrelationID(r *http.Request) (*http.Request, string) {
	id := r.Header.Get(CorrelationIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.New().String()
		r.Header.Set(CorrelationIDHeader, id)
	}

	return r.WithContext(WithCorrelationIDContext(r.Context(), id)), id
}

// GetLoggerFromContext returns base enriched with the context's correlation id.
func GetLoggerFromContext(ctx context.Context, base Logger) Logger {
	if id := GetCorrelationIDFromContext(ctx); id != "" {
		return base.WithCorrelationID(id)
	}
	return base
}
