// Package gateway connects sessions to the WhatsApp protocol gateway over
// websockets. Each session gets its own socket to {URL}/sessions/{id}; the
// gateway speaks JSON text frames and owns the actual WhatsApp Web protocol.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// Defaults applied by NewClient.
const (
	DefaultKeepAlive        = 15 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// DefaultBrowser is the browser identity announced to WhatsApp.
var DefaultBrowser = []string{"Phonova", "Chrome", "4.0.0"}

// Config configures the gateway client.
type Config struct {
	// URL is the gateway base URL (ws:// or wss://).
	URL string
	// Token, when set, is sent as a bearer token on every dial.
	Token            string
	Browser          []string
	KeepAlive        time.Duration
	HandshakeTimeout time.Duration
	Logger           logger.Logger
}

// Client dials one websocket per session. It implements session.Engine.
type Client struct {
	base      string
	header    http.Header
	browser   []string
	keepAlive time.Duration
	dialer    *websocket.Dialer
	log       logger.Logger
}

var _ session.Engine = (*Client)(nil)

// NewClient validates cfg and applies defaults.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("gateway URL must use ws or wss, got %q", cfg.URL)
	}

	if len(cfg.Browser) == 0 {
		cfg.Browser = DefaultBrowser
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNopLogger()
	}

	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}

	return &Client{
		base:      strings.TrimRight(cfg.URL, "/"),
		header:    header,
		browser:   cfg.Browser,
		keepAlive: cfg.KeepAlive,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log: cfg.Logger.WithFields(logger.StringField("component", "gateway")),
	}, nil
}

// Connect dials the gateway and sends the connect frame. It returns as soon
// as the frame is written; pairing and authentication are reported through
// the handle's events. nil creds start a fresh pairing.
func (c *Client) Connect(ctx context.Context, sessionID string, creds []byte) (session.Handle, error) {
	raw := json.RawMessage("null")
	if len(creds) > 0 {
		if !json.Valid(creds) {
			return nil, errors.New("stored credentials are not valid JSON")
		}
		raw = creds
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint(sessionID), c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial gateway: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	h := newHandle(conn, sessionID, c.keepAlive, c.log)
	err = h.write(ctx, connectFrame{
		Type:                FrameConnect,
		SessionID:           sessionID,
		Credentials:         raw,
		Browser:             c.browser,
		KeepAliveIntervalMs: c.keepAlive.Milliseconds(),
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send connect frame: %w", err)
	}

	h.start()
	h.log.Debug("Gateway connection established", logger.BoolField("has_credentials", creds != nil))
	return h, nil
}

func (c *Client) endpoint(sessionID string) string {
	return c.base + "/sessions/" + url.PathEscape(sessionID)
}

// RemoteError is the error reported by the gateway when it closes a session.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gateway closed connection (status %d): %s", e.StatusCode, e.Message)
}

// ErrHandleClosed is returned when writing to a terminated handle.
var ErrHandleClosed = errors.New("connection handle closed")
