// Package httpmiddleware assembles the chi middleware stack shared by the
// service's HTTP routers.
package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
	"github.com/unrolled/secure"
)

// Config selects which middleware ApplyToRouter installs.
type Config struct {
	Logger   logger.Logger
	CORS     *CORSConfig
	Security *secure.Options
	Timeout  time.Duration

	EnableLogging     bool
	EnableRecovery    bool
	EnableCORS        bool
	EnableSecurity    bool
	EnableRealIP      bool
	EnableHeartbeat   bool
	EnableTimeout     bool
	EnableCompression bool
}

// DefaultConfig enables everything except logging, which needs a Logger.
func DefaultConfig() Config {
	cors := DefaultCORSConfig()
	return Config{
		CORS:              &cors,
		Timeout:           60 * time.Second,
		EnableRecovery:    true,
		EnableCORS:        true,
		EnableSecurity:    true,
		EnableRealIP:      true,
		EnableHeartbeat:   true,
		EnableTimeout:     true,
		EnableCompression: true,
	}
}

// ApplyToRouter installs the connection-agnostic middleware on router, in
// this order: real IP, logging (which also assigns the correlation id),
// recovery, security headers, CORS, /ping heartbeat.
//
// Timeout and compression are not installed here because they wrap the
// response writer in ways that break websocket upgrades; mount them on a
// route group with Buffered.
func ApplyToRouter(router chi.Router, cfg Config) {
	if cfg.EnableRealIP {
		router.Use(middleware.RealIP)
	}
	if cfg.EnableLogging && cfg.Logger != nil {
		router.Use(cfg.Logger.HTTPMiddleware)
	}
	if cfg.EnableRecovery {
		router.Use(Recovery(cfg.Logger))
	}
	if cfg.EnableSecurity {
		router.Use(Security(cfg.Security))
	}
	if cfg.EnableCORS && cfg.CORS != nil {
		router.Use(CORS(*cfg.CORS))
	}
	if cfg.EnableHeartbeat {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// Buffered returns the timeout and compression middleware for plain
// request/response routes.
func Buffered(cfg Config) []func(http.Handler) http.Handler {
	var mws []func(http.Handler) http.Handler
	if cfg.EnableTimeout && cfg.Timeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.Timeout))
	}
	if cfg.EnableCompression {
		mws = append(mws, middleware.Compress(5))
	}
	return mws
}

// WithLogger applies DefaultConfig with request logging through log.
func WithLogger(router chi.Router, log logger.Logger) {
	cfg := DefaultConfig()
	cfg.Logger = log
	cfg.EnableLogging = true
	ApplyToRouter(router, cfg)
}
