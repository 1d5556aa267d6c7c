// Package server wires the session supervisor, its collaborators and the
// HTTP, health, metrics and gRPC listeners into one process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/lewisedginton/whatsapp_session_manager/internal/api"
	appconfig "github.com/lewisedginton/whatsapp_session_manager/internal/config"
	"github.com/lewisedginton/whatsapp_session_manager/internal/gateway"
	"github.com/lewisedginton/whatsapp_session_manager/internal/monitoring"
	"github.com/lewisedginton/whatsapp_session_manager/internal/notify"
	"github.com/lewisedginton/whatsapp_session_manager/internal/pairing"
	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/health"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/metrics"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/utils"
)

// Server encapsulates all the session manager components and lifecycle management
type Server struct {
	cfg *appconfig.AppConfig
	log logger.Logger

	metrics       *metrics.Metrics
	credentials   *credentialBackend
	engine        session.Engine
	notifier      *notify.Webhook
	hub           *pairing.Hub
	supervisor    *session.Supervisor
	api           *api.Handler
	healthMonitor *monitoring.HealthMonitor

	httpServer   *http.Server
	healthServer *http.Server
	grpcServer   *grpc.Server
	grpcUpdater  *health.GRPCUpdater

	// baseCtx parents work that outlives a request. It is cancelled when
	// shutdown starts.
	baseCtx    context.Context
	cancelBase context.CancelFunc
	startup    sync.WaitGroup
}

// Option overrides a component New would otherwise build from config.
type Option func(*Server)

// WithEngine replaces the protocol gateway client.
func WithEngine(engine session.Engine) Option {
	return func(s *Server) { s.engine = engine }
}

// New creates a new Server instance with all components initialized
func New(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		cfg: cfg,
		log: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	s.metrics = metrics.NewMetrics(
		cfg.Metrics.EnableHTTPMetrics,
		cfg.Health.Enabled && cfg.Health.GRPCPort > 0,
		cfg.Metrics.EnableSessionMetrics,
		log,
	)

	var err error
	s.credentials, err = s.createCredentialBackend(ctx)
	if err != nil {
		s.cancelBase()
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	if s.engine == nil {
		s.engine, err = gateway.NewClient(gateway.Config{
			URL:              cfg.Gateway.URL,
			Token:            cfg.Gateway.Token,
			Browser:          cfg.Gateway.Browser,
			KeepAlive:        cfg.Gateway.KeepAlive,
			HandshakeTimeout: cfg.Gateway.HandshakeTimeout,
			Logger:           log,
		})
		if err != nil {
			s.cancelBase()
			s.credentials.close()
			return nil, fmt.Errorf("failed to create gateway client: %w", err)
		}
	}

	s.notifier = notify.New(notify.Config{
		BaseURL: cfg.Webhook.N8NURL,
		Timeout: cfg.Webhook.Timeout,
		Logger:  log,
	})
	s.hub = pairing.NewHub(log, cfg.Security.QRAllowedOrigins)

	supervisorOpts := session.Options{
		RestartAllDelay: cfg.Supervisor.SessionRestartAllDelay(),
		ConnectTimeout:  cfg.Supervisor.SessionConnectTimeout(),
		Logger:          log,
		Notifier:        s.notifier,
		QR:              s.hub,
	}
	if s.metrics.Sessions != nil {
		supervisorOpts.Observer = s.metrics.Sessions
	}
	s.supervisor = session.NewSupervisor(s.engine, s.credentials.store, supervisorOpts)

	s.api = api.NewHandler(api.Config{
		Sessions:   s.supervisor,
		QR:         s.hub,
		Logger:     log,
		Background: s.baseCtx,
	})

	s.healthMonitor = monitoring.NewHealthMonitor(monitoring.Config{
		Logger:           log,
		Version:          cfg.Version,
		CredentialStore:  s.credentials.check,
		GatewayHealthURL: cfg.Gateway.HealthURL,
		Sessions:         s.supervisor.Registry().Len,
		Paths: monitoring.Paths{
			Liveness:  cfg.Health.LivenessPath,
			Readiness: cfg.Health.ReadinessPath,
			Combined:  cfg.Health.CombinedPath,
		},
		Timeout:          cfg.Health.Timeout,
		FailureThreshold: cfg.Health.FailureThreshold,
	})

	s.httpServer = &http.Server{
		Addr:           cfg.HTTP.Addr(),
		Handler:        s.createRouter(),
		ReadTimeout:    cfg.HTTP.ReadTimeout(),
		WriteTimeout:   cfg.HTTP.WriteTimeout(),
		IdleTimeout:    cfg.HTTP.IdleTimeout(),
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	log.Info("Session server initialized",
		logger.IntField("http_port", cfg.HTTP.Port),
		logger.StringField("credentials_backend", string(cfg.Credentials.Backend)))

	return s, nil
}

// Handler returns the public HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Supervisor returns the session supervisor.
func (s *Server) Supervisor() *session.Supervisor {
	return s.supervisor
}

// Run starts every listener, restarts stored sessions when configured to and
// blocks until ctx is cancelled, a signal arrives or a listener fails. It
// always shuts down before returning.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.setupGracefulShutdown(ctx, cancel)

	errChan, closer, gracefulCloser, err := s.Listen()
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	errChans := []<-chan error{errChan}

	if s.cfg.Metrics.ExposeMetrics {
		errChans = append(errChans, ignoreServerClosed(s.metrics.Listen(s.cfg.Metrics.Port)))
	}

	if s.cfg.Health.Enabled {
		errChans = append(errChans, s.startHealthServer())

		if s.cfg.Health.GRPCPort > 0 {
			grpcErrs, err := s.startGRPCHealth()
			if err != nil {
				closer()
				return err
			}
			errChans = append(errChans, grpcErrs)
		}
	}

	if s.cfg.Supervisor.RestartOnStartup {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			if err := s.supervisor.RestartAll(s.baseCtx); err != nil {
				s.log.Error("Failed to restart stored sessions", logger.ErrorField(err))
			}
		}()
	}

	s.log.Info("Session server started")

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Info("Shutdown requested")
		s.healthMonitor.MarkShuttingDown()
		gracefulCloser()
	case err := <-utils.MergeErrorChans(errChans...):
		if err != nil {
			s.log.Error("Fatal server error occurred", logger.ErrorField(err))
			s.healthMonitor.MarkShuttingDown()
			closer()
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	s.shutdown()
	return runErr
}

// shutdown stops the supervisor and every auxiliary listener. The public
// HTTP server must already be closed.
func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()

	s.cancelBase()
	s.startup.Wait()
	s.api.Wait()

	if err := s.supervisor.Close(ctx); err != nil {
		s.log.Error("Failed to close sessions", logger.ErrorField(err))
	}

	if s.grpcUpdater != nil {
		s.grpcUpdater.Stop()
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.healthServer != nil {
		if err := s.healthServer.Shutdown(ctx); err != nil {
			s.log.Error("Health server shutdown error", logger.ErrorField(err))
		}
	}
	if err := s.metrics.Shutdown(ctx); err != nil {
		s.log.Error("Metrics server shutdown error", logger.ErrorField(err))
	}

	s.credentials.close()
	s.log.Info("Session server stopped")
}

func (s *Server) setupGracefulShutdown(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			s.log.Info("Received shutdown signal", logger.StringField("signal", sig.String()))
			cancel()

			// Give components time to shutdown gracefully, then force exit
			time.AfterFunc(s.shutdownTimeout(), func() {
				s.log.Warn("Force exiting due to timeout")
				os.Exit(1)
			})
		case <-ctx.Done():
		}
	}()
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.Supervisor.ShutdownTimeout > 0 {
		return s.cfg.Supervisor.ShutdownTimeout
	}
	return 30 * time.Second
}

func (s *Server) startHealthServer() <-chan error {
	s.log.Info("Starting health check server",
		logger.IntField("port", s.cfg.Health.Port),
		logger.StringField("liveness_path", s.cfg.Health.LivenessPath),
		logger.StringField("readiness_path", s.cfg.Health.ReadinessPath))

	mux := http.NewServeMux()
	s.healthMonitor.RegisterHandlers(mux)

	s.healthServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Health.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		if err := s.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("health server: %w", err)
		}
	}()
	return errs
}

func (s *Server) startGRPCHealth() (<-chan error, error) {
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.log.GrpcRequestsInterceptor,
		s.metrics.GrpcRequestsInterceptor,
	))
	s.grpcUpdater = s.healthMonitor.Checker().RegisterWithGRPC(s.grpcServer, s.cfg.Health.CheckInterval)

	errs, _, err := utils.ServeGRPC(s.grpcServer, s.cfg.Health.GRPCPort, s.log)
	if err != nil {
		s.grpcUpdater.Stop()
		s.grpcUpdater = nil
		s.grpcServer = nil
		return nil, fmt.Errorf("failed to start gRPC health server: %w", err)
	}
	return ignoreServerClosed(errs), nil
}

// ignoreServerClosed drops the errors a listener reports after a clean stop.
func ignoreServerClosed(in <-chan error) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		for err := range in {
			if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, grpc.ErrServerStopped) {
				continue
			}
			out <- err
		}
	}()
	return out
}
