// Package api exposes the bot lifecycle over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/whatsapp_session_manager/internal/pairing"
	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// Sessions is the lifecycle surface the handlers drive. *session.Supervisor
// implements it.
type Sessions interface {
	Start(ctx context.Context, id string) error
	Restart(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	RestartAll(ctx context.Context) error
	Info(id string) (session.Entry, error)
	List() []session.Entry
	SendPresence(ctx context.Context, id, chatID string, presence session.Presence) error
}

// QRSource serves pairing codes. *pairing.Hub implements it.
type QRSource interface {
	Latest(sessionID string) (pairing.Update, bool)
	ServeWS(w http.ResponseWriter, r *http.Request, sessionID string)
}

// Config configures a Handler.
type Config struct {
	Sessions Sessions
	QR       QRSource
	Logger   logger.Logger
	// Background is the parent context of work that outlives a request,
	// such as restartAll. It should be cancelled on shutdown.
	Background context.Context
	// RequestTimeout bounds synchronous lifecycle calls.
	RequestTimeout time.Duration
}

// Handler serves the lifecycle routes.
type Handler struct {
	sessions   Sessions
	qr         QRSource
	log        logger.Logger
	background context.Context
	timeout    time.Duration

	restartingAll atomic.Bool
	bg            sync.WaitGroup
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Background == nil {
		cfg.Background = context.Background()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = time.Minute
	}
	return &Handler{
		sessions:   cfg.Sessions,
		qr:         cfg.QR,
		log:        cfg.Logger.WithFields(logger.StringField("component", "api")),
		background: cfg.Background,
		timeout:    cfg.RequestTimeout,
	}
}

// Mount registers every route on r. buffered middlewares (timeouts,
// compression) wrap every route except the QR websocket stream.
func (h *Handler) Mount(r chi.Router, buffered ...func(http.Handler) http.Handler) {
	b := r.With(buffered...)

	b.Get("/", h.index)

	b.Post("/whatsapp/bot/addBot", h.addBot)
	b.Post("/whatsapp/bot/deleteBot", h.deleteBot)
	b.Post("/whatsapp/bot/restartBot", h.restartBot)
	b.Post("/whatsapp/bot/restartAll", h.restartAll)
	b.Post("/whatsapp/bot/typing", h.typing)

	b.Get("/whatsapp/bot", h.list)
	b.Get("/whatsapp/bot/{botId}", h.info)
	b.Get("/whatsapp/bot/{botId}/qr", h.latestQR)

	r.Get("/whatsapp/bot/{botId}/qr/ws", h.qrStream)
}

// Wait blocks until background work started by requests has finished.
func (h *Handler) Wait() {
	h.bg.Wait()
}

// Router returns a bare chi router with the routes mounted. The server
// wraps it with the shared middleware stack.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}
