package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/health"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/health/checkers"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// Health status constants
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusReady     = "ready"
	statusNotReady  = "not_ready"
)

// Default probe paths.
const (
	DefaultLivenessPath  = "/health/live"
	DefaultReadinessPath = "/health/ready"
	DefaultCombinedPath  = "/health"
)

var errShuttingDown = errors.New("shutting down")

// HealthMonitor manages health checks and monitoring endpoints for the application
type HealthMonitor struct {
	checker      *health.Checker
	logger       logger.Logger
	version      string
	startTime    time.Time
	sessions     func() int
	paths        Paths
	shuttingDown atomic.Bool
}

// Paths are the URLs RegisterHandlers mounts the probes on.
type Paths struct {
	Liveness  string
	Readiness string
	Combined  string
}

// Config holds configuration for the health monitor
type Config struct {
	Logger  logger.Logger
	Version string

	// CredentialStore checks the credential backend. Optional.
	CredentialStore health.Check
	// GatewayHealthURL is fetched by the gateway readiness check when set.
	GatewayHealthURL string
	// Sessions reports how many sessions are registered. Optional.
	Sessions func() int

	Paths            Paths
	Timeout          time.Duration // Health check timeout
	FailureThreshold int           // Number of consecutive failures before reporting unhealthy
}

// NewHealthMonitor creates a new health monitor with configured checks
func NewHealthMonitor(cfg Config) *HealthMonitor {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Paths.Liveness == "" {
		cfg.Paths.Liveness = DefaultLivenessPath
	}
	if cfg.Paths.Readiness == "" {
		cfg.Paths.Readiness = DefaultReadinessPath
	}
	if cfg.Paths.Combined == "" {
		cfg.Paths.Combined = DefaultCombinedPath
	}

	checker := health.New(
		health.WithLogger(cfg.Logger),
		health.WithTimeout(cfg.Timeout),
		health.WithFailureThreshold(cfg.FailureThreshold),
	)

	hm := &HealthMonitor{
		checker:   checker,
		logger:    cfg.Logger,
		version:   cfg.Version,
		startTime: time.Now(),
		sessions:  cfg.Sessions,
		paths:     cfg.Paths,
	}

	checker.AddLivenessCheck(health.NewCheckFunc("process", func(ctx context.Context) error {
		return nil
	}))

	if cfg.CredentialStore != nil {
		checker.AddReadinessCheck(cfg.CredentialStore)
	}

	if cfg.GatewayHealthURL != "" {
		checker.AddReadinessCheck(checkers.NewHTTPChecker(cfg.GatewayHealthURL, "gateway"))
	}

	return hm
}

// Checker exposes the underlying checker, e.g. for gRPC registration.
func (hm *HealthMonitor) Checker() *health.Checker {
	return hm.checker
}

// MarkShuttingDown makes every later readiness probe fail without running
// the checks.
func (hm *HealthMonitor) MarkShuttingDown() {
	hm.shuttingDown.Store(true)
}

func (hm *HealthMonitor) checkReadiness(ctx context.Context) (*health.Status, error) {
	if hm.shuttingDown.Load() {
		return &health.Status{}, errShuttingDown
	}
	return hm.checker.CheckReadiness(ctx)
}

// LivenessHandler returns an HTTP handler for Kubernetes liveness probes
// GET /health/live - Returns 200 if the process is alive and can handle requests
func (hm *HealthMonitor) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := hm.checker.CheckLiveness(r.Context())

		response := map[string]interface{}{
			"status":    statusHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(hm.startTime).String(),
			"checks":    status.Checks,
		}

		code := http.StatusOK
		if err != nil {
			response["status"] = statusUnhealthy
			response["error"] = err.Error()
			code = http.StatusServiceUnavailable
			hm.logger.Error("Liveness check failed", logger.ErrorField(err))
		}
		writeJSON(w, code, response)
	}
}

// ReadinessHandler returns an HTTP handler for Kubernetes readiness probes
// GET /health/ready - Returns 200 if the credential store and gateway are reachable
func (hm *HealthMonitor) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := hm.checkReadiness(r.Context())

		response := map[string]interface{}{
			"status":    statusReady,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    status.Checks,
		}

		code := http.StatusOK
		if err != nil {
			response["status"] = statusNotReady
			response["error"] = err.Error()
			code = http.StatusServiceUnavailable
			hm.logger.Warn("Readiness check failed", logger.ErrorField(err))
		}
		writeJSON(w, code, response)
	}
}

// HealthHandler returns a combined health endpoint that includes both liveness and readiness
// GET /health - Returns comprehensive health status
func (hm *HealthMonitor) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		livenessStatus, livenessErr := hm.checker.CheckLiveness(ctx)
		readinessStatus, readinessErr := hm.checkReadiness(ctx)

		liveness := map[string]interface{}{
			"status": statusHealthy,
			"checks": livenessStatus.Checks,
		}
		readiness := map[string]interface{}{
			"status": statusReady,
			"checks": readinessStatus.Checks,
		}
		response := map[string]interface{}{
			"status":    statusHealthy,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(hm.startTime).String(),
			"version":   hm.version,
			"liveness":  liveness,
			"readiness": readiness,
		}
		if hm.sessions != nil {
			response["sessions"] = hm.sessions()
		}

		code := http.StatusOK
		if livenessErr != nil {
			liveness["status"] = statusUnhealthy
			liveness["error"] = livenessErr.Error()
			code = http.StatusServiceUnavailable
		}
		if readinessErr != nil {
			readiness["status"] = statusNotReady
			readiness["error"] = readinessErr.Error()
			code = http.StatusServiceUnavailable
		}
		if code != http.StatusOK {
			response["status"] = statusUnhealthy
		}
		writeJSON(w, code, response)
	}
}

// RegisterHandlers registers all health check endpoints on the provided mux
func (hm *HealthMonitor) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc(hm.paths.Combined, hm.HealthHandler())
	mux.HandleFunc(hm.paths.Liveness, hm.LivenessHandler())
	mux.HandleFunc(hm.paths.Readiness, hm.ReadinessHandler())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
