// Package metrics provides Prometheus metrics collection for HTTP and gRPC
// requests and for the lifecycle of supervised WhatsApp sessions.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const (
	namespace = "whatsapp"
	subsystem = "app"
)

var durationBuckets = []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0}

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPResponsesCounter     *prometheus.CounterVec
	HTTPDurationHistogram    prometheus.Histogram

	TotalGrpcRequestsCounter prometheus.Counter
	GrpcResponsesCounter     *prometheus.CounterVec
	GrpcDurationHistogram    prometheus.Histogram

	Sessions *SessionMetrics

	server *http.Server
	log    logger.Logger
}

// NewMetrics creates a Metrics instance with the requested collector groups.
func NewMetrics(httpCounters, grpcCounters, sessionMetrics bool, l logger.Logger) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
	}
	if httpCounters {
		m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "total_http_requests",
			Help:      "Total HTTP requests",
		})
		m.HTTPResponsesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "http_responses_total",
			Help:      "HTTP responses returned, by status code",
		}, []string{"code"})
		m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   durationBuckets,
		})
		m.reg.MustRegister(m.TotalHTTPRequestsCounter, m.HTTPResponsesCounter, m.HTTPDurationHistogram)
	}
	if grpcCounters {
		m.TotalGrpcRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "total_grpc_requests",
			Help:      "Total gRPC requests",
		})
		m.GrpcResponsesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "grpc_responses_total",
			Help:      "gRPC responses returned, by status code",
		}, []string{"code"})
		m.GrpcDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC request duration in seconds",
			Buckets:   durationBuckets,
		})
		m.reg.MustRegister(m.TotalGrpcRequestsCounter, m.GrpcResponsesCounter, m.GrpcDurationHistogram)
	}
	if sessionMetrics {
		m.Sessions = NewSessionMetrics(m.reg)
	}
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Listen starts the metrics HTTP server on the given port. The returned
// channel receives the server's terminal error; after Shutdown that is
// http.ErrServerClosed.
func (m *Metrics) Listen(port int) <-chan error {
	m.log.Info("Starting metrics listener", logger.IntField("port", port))
	mux := http.NewServeMux()
	mux.Handle("/", http.NotFoundHandler())
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- m.server.ListenAndServe()
	}()
	return errChan
}

// Shutdown stops the listener started by Listen.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	m.log.Info("Stopping metrics listener")
	if err := m.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// AddCustomMetric registers an additional collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.reg.MustRegister(c)
}

// GrpcRequestsInterceptor implements the gRPC unary interceptor signature.
func (m *Metrics) GrpcRequestsInterceptor(
	ctx context.Context,
	req interface{},
	_ *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	if m.TotalGrpcRequestsCounter == nil {
		return handler(ctx, req)
	}

	start := time.Now()
	m.TotalGrpcRequestsCounter.Inc()
	resp, err := handler(ctx, req)

	m.GrpcDurationHistogram.Observe(time.Since(start).Seconds())
	m.GrpcResponsesCounter.WithLabelValues(status.Code(err).String()).Inc()

	return resp, err
}

// IncrementHTTPResponseCounter counts one response with the given status.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	if m.HTTPResponsesCounter == nil {
		return
	}
	m.HTTPResponsesCounter.WithLabelValues(strconv.Itoa(code)).Inc()
}

// HTTPMiddleware returns a chi-compatible middleware that counts requests by
// status code and records their duration. It is a pass-through when HTTP
// metrics are off.
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.TotalHTTPRequestsCounter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.TotalHTTPRequestsCounter.Inc()

			// chi's wrapper keeps http.Hijacker available for websocket upgrades.
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.IncrementHTTPResponseCounter(code)
		})
	}
}
