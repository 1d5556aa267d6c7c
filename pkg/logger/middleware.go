package logger

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// HTTPMiddleware logs every request and its response, assigning a correlation
// id when the caller did not send a valid one.
func (l *logger) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r, correlationID := EnsureHTTPCorrelationID(r)

		reqLog := l.WithFields(
			ClientIPField(r.RemoteAddr),
			HTTPMethodField(r.Method),
			HTTPPathField(r.URL.Path),
			CorrelationIDField(correlationID),
		)
		reqLog.Debug("HTTP request received")

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		reqLog.Info("HTTP response sent",
			HTTPStatusField(ww.Status()),
			IntField("response_bytes", ww.BytesWritten()),
			DurationField("duration", time.Since(start)),
		)
	})
}

// GrpcRequestsInterceptor is a unary server interceptor logging each call.
func (l *logger) GrpcRequestsInterceptor(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	start := time.Now()
	ctx, correlationID := EnsureCorrelationID(ctx)

	callLog := l.WithFields(
		StringField("grpc_method", info.FullMethod),
		CorrelationIDField(correlationID),
	)

	resp, err := handler(ctx, req)

	fields := []LogField{
		DurationField("duration", time.Since(start)),
		StringField("grpc_code", status.Code(err).String()),
	}
	if err != nil {
		callLog.Error("gRPC request failed", append(fields, ErrorField(err))...)
	} else {
		callLog.Debug("gRPC request completed", fields...)
	}

	return resp, err
}
