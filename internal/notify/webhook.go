// Package notify tells the n8n workflow system when bots are added or
// deleted. Notifications are fire-and-forget: one attempt, no retry.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// Webhook paths below the n8n base URL.
const (
	AddBotPath    = "/webhook-test/addBot"
	DeleteBotPath = "/webhook-test/deleteBot"
)

// DefaultTimeout bounds a single webhook call.
const DefaultTimeout = 10 * time.Second

// Config configures the webhook notifier.
type Config struct {
	// BaseURL is the n8n base URL. Empty disables notifications.
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
	Logger  logger.Logger
}

// Webhook posts lifecycle events to n8n. It implements session.Notifier.
type Webhook struct {
	baseURL string
	client  *http.Client
	log     logger.Logger
}

var _ session.Notifier = (*Webhook)(nil)

// NotificationError reports a failed webhook call.
type NotificationError struct {
	Event      string
	StatusCode int
	Err        error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notification %s failed: %v", e.Event, e.Err)
	}
	return fmt.Sprintf("notification %s rejected with status %d", e.Event, e.StatusCode)
}

func (e *NotificationError) Unwrap() error { return e.Err }

type addBotPayload struct {
	User        session.User `json:"user"`
	InstanceKey string       `json:"instance_key"`
}

type deleteBotPayload struct {
	BotID string `json:"botId"`
}

// New creates a notifier. With an empty BaseURL every call is a no-op.
func New(cfg Config) *Webhook {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}

	w := &Webhook{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		log:     cfg.Logger.WithFields(logger.StringField("component", "notify")),
	}
	if !w.Enabled() {
		w.log.Warn("N8N_URL is not set, bot notifications are disabled")
	}
	return w
}

// Enabled reports whether a base URL is configured.
func (w *Webhook) Enabled() bool {
	return w.baseURL != ""
}

// BotAdded posts {user, instance_key} to the addBot webhook.
func (w *Webhook) BotAdded(ctx context.Context, sessionID string, user session.User) error {
	err := w.post(ctx, session.NotifyBotAdded, AddBotPath, addBotPayload{User: user, InstanceKey: sessionID})
	w.report(sessionID, err, "Bot saved", "Bot not saved")
	return err
}

// BotDeleted posts {botId} to the deleteBot webhook.
func (w *Webhook) BotDeleted(ctx context.Context, sessionID string) error {
	err := w.post(ctx, session.NotifyBotDeleted, DeleteBotPath, deleteBotPayload{BotID: sessionID})
	w.report(sessionID, err, "Bot deleted", "Bot not deleted")
	return err
}

func (w *Webhook) post(ctx context.Context, event, path string, payload any) error {
	if !w.Enabled() {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &NotificationError{Event: event, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &NotificationError{Event: event, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if id := logger.GetCorrelationIDFromContext(ctx); id != "" {
		req.Header.Set(logger.CorrelationIDHeader, id)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return &NotificationError{Event: event, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &NotificationError{Event: event, StatusCode: resp.StatusCode}
	}
	return nil
}

func (w *Webhook) report(sessionID string, err error, ok, failed string) {
	if !w.Enabled() {
		return
	}
	if err != nil {
		w.log.Warn(failed, logger.SessionIDField(sessionID), logger.ErrorField(err))
		return
	}
	w.log.Info(ok, logger.SessionIDField(sessionID))
}
