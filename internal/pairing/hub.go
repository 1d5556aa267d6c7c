// Package pairing displays WhatsApp pairing QR codes: it logs a scannable
// URL, remembers the latest code per session and streams codes to websocket
// subscribers.
package pairing

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

const scanURLBase = "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data="

// subscriberBuffer is how many updates a slow subscriber may lag behind
// before updates are dropped for it.
const subscriberBuffer = 8

// Update is one pairing state change of a session.
type Update struct {
	SessionID string    `json:"botId"`
	QR        string    `json:"qr,omitempty"`
	URL       string    `json:"url,omitempty"`
	Paired    bool      `json:"paired,omitempty"`
	At        time.Time `json:"at"`
}

// Hub fans pairing codes out to subscribers. It implements session.QRPublisher.
type Hub struct {
	mu     sync.RWMutex
	latest map[string]Update
	subs   map[string]map[chan Update]struct{}
	log    logger.Logger

	allowedOrigins []string
}

var _ session.QRPublisher = (*Hub)(nil)

// NewHub creates a hub. allowedOrigins restricts browser websocket
// subscribers; "*" allows any origin.
func NewHub(log logger.Logger, allowedOrigins []string) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		latest:         make(map[string]Update),
		subs:           make(map[string]map[chan Update]struct{}),
		log:            log.WithFields(logger.StringField("component", "pairing")),
		allowedOrigins: allowedOrigins,
	}
}

// ScanURL returns a URL rendering qr as a scannable image.
func ScanURL(qr string) string {
	return scanURLBase + strings.ReplaceAll(url.QueryEscape(qr), "+", "%20")
}

// PublishQR records qr as the session's current code and notifies subscribers.
func (h *Hub) PublishQR(sessionID, qr string) {
	update := Update{SessionID: sessionID, QR: qr, URL: ScanURL(qr), At: time.Now()}

	h.log.Info("QR code received, scan it in WhatsApp",
		logger.SessionIDField(sessionID),
		logger.StringField("scan_url", update.URL),
		logger.StringField("qr", qr))

	h.mu.Lock()
	h.latest[sessionID] = update
	h.broadcastLocked(update)
	h.mu.Unlock()
}

// ClearQR forgets the session's code once it has paired.
func (h *Hub) ClearQR(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.latest[sessionID]; !ok && len(h.subs[sessionID]) == 0 {
		return
	}
	delete(h.latest, sessionID)
	h.broadcastLocked(Update{SessionID: sessionID, Paired: true, At: time.Now()})
}

// Latest returns the session's current code.
func (h *Hub) Latest(sessionID string) (Update, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	u, ok := h.latest[sessionID]
	return u, ok
}

// Subscribe returns a channel of the session's updates, primed with the
// current code if there is one. The returned func unsubscribes and closes
// the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Update]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	if u, ok := h.latest[sessionID]; ok {
		ch <- u
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(ch)
		})
	}
}

// Subscribers returns the number of subscribers of a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *Hub) broadcastLocked(u Update) {
	for ch := range h.subs[u.SessionID] {
		select {
		case ch <- u:
		default:
			h.log.Debug("Dropping QR update for slow subscriber", logger.SessionIDField(u.SessionID))
		}
	}
}
