package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/httpmiddleware"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// createRouter sets up all routes and middleware
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()

	mw := httpmiddleware.DefaultConfig()
	mw.Logger = s.log
	mw.EnableLogging = true
	mw.EnableSecurity = s.cfg.Security.SecurityHeaders
	mw.Security = &secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IsDevelopment:      !s.cfg.IsProduction(),
	}
	if len(s.cfg.Security.CORSAllowedOrigins) > 0 {
		mw.CORS.AllowedOrigins = s.cfg.Security.CORSAllowedOrigins
	}

	r.Use(middleware.RequestID)
	r.Use(s.metrics.HTTPMiddleware())
	httpmiddleware.ApplyToRouter(r, mw)

	buffered := httpmiddleware.Buffered(mw)
	if s.cfg.Security.MaxRequestSize > 0 {
		buffered = append(buffered, middleware.RequestSize(s.cfg.Security.MaxRequestSize))
	}
	s.api.Mount(r, buffered...)

	return r
}

// Listen starts the HTTP server and returns channels for error handling
func (s *Server) Listen() (chan error, func(), func(), error) {
	errChan := make(chan error, 1)

	go func() {
		s.log.Info("Starting HTTP server", logger.StringField("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	closer := func() {
		s.log.Info("Forcefully closing HTTP server")
		if err := s.Close(); err != nil {
			s.log.Error("Error during forced shutdown", logger.ErrorField(err))
		}
	}

	gracefulCloser := func() {
		s.log.Info("Gracefully closing HTTP server")
		if err := s.GracefulShutdown(); err != nil {
			s.log.Error("Error during graceful shutdown", logger.ErrorField(err))
		}
	}

	return errChan, closer, gracefulCloser, nil
}

// GracefulShutdown gracefully shuts down the HTTP server
func (s *Server) GracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	return nil
}

// Close forcefully shuts down the server
func (s *Server) Close() error {
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}
