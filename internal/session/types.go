// Package session owns the registry of live WhatsApp connections and the
// supervisor that starts, restarts, deletes and reconnects them.
package session

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// StatusCode is the disconnect reason reported by the protocol engine. The
// values match the WhatsApp Web disconnect reasons.
type StatusCode int

// Known status codes. StatusUnknown is used for local terminations and for
// streams that ended without a reason.
const (
	StatusUnknown             StatusCode = 0
	StatusLoggedOut           StatusCode = 401
	StatusForbidden           StatusCode = 403
	StatusConnectionLost      StatusCode = 408
	StatusMultideviceMismatch StatusCode = 411
	StatusConnectionClosed    StatusCode = 428
	StatusConnectionReplaced  StatusCode = 440
	StatusBadSession          StatusCode = 500
	StatusUnavailableService  StatusCode = 503
	StatusRestartRequired     StatusCode = 515
)

var statusNames = map[StatusCode]string{
	StatusUnknown:             "unknown",
	StatusLoggedOut:           "logged_out",
	StatusForbidden:           "forbidden",
	StatusConnectionLost:      "connection_lost",
	StatusMultideviceMismatch: "multidevice_mismatch",
	StatusConnectionClosed:    "connection_closed",
	StatusConnectionReplaced:  "connection_replaced",
	StatusBadSession:          "bad_session",
	StatusUnavailableService:  "unavailable_service",
	StatusRestartRequired:     "restart_required",
}

func (c StatusCode) String() string {
	if name, ok := statusNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// Reason explains why a handle was terminated locally.
type Reason string

// Termination reasons.
const (
	ReasonRestartRequested Reason = "restart_requested"
	ReasonAdminDelete      Reason = "admin_delete"
	ReasonShutdown         Reason = "shutdown"
	ReasonInternalError    Reason = "internal_error"
)

// TerminatedError is the error carried by the Closed event of a handle that
// was terminated through Handle.Terminate.
type TerminatedError struct {
	Reason Reason
}

func (e *TerminatedError) Error() string {
	return fmt.Sprintf("connection terminated: %s", e.Reason)
}

// User identifies the WhatsApp account behind a connected session.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// EventKind tags an Event.
type EventKind int

// Event kinds.
const (
	EventOpening EventKind = iota + 1
	EventOpen
	EventClosed
	EventCredentialsUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventOpening:
		return "opening"
	case EventOpen:
		return "open"
	case EventClosed:
		return "closed"
	case EventCredentialsUpdated:
		return "credentials_updated"
	default:
		return "unknown"
	}
}

// Event is one connection-state or credential change reported by a handle.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind        EventKind
	QR          string
	User        User
	StatusCode  StatusCode
	Err         error
	Credentials []byte
}

// Opening reports a connection in progress, optionally with a pairing QR code.
func Opening(qr string) Event { return Event{Kind: EventOpening, QR: qr} }

// Open reports an authenticated connection.
func Open(user User) Event { return Event{Kind: EventOpen, User: user} }

// Closed reports the end of a connection. It is always the last event.
func Closed(code StatusCode, err error) Event {
	return Event{Kind: EventClosed, StatusCode: code, Err: err}
}

// CredentialsUpdated carries the latest full credential blob.
func CredentialsUpdated(creds []byte) Event {
	return Event{Kind: EventCredentialsUpdated, Credentials: creds}
}

// Presence is a chat presence state.
type Presence string

// Presence states understood by the gateway.
const (
	PresenceComposing Presence = "composing"
	PresencePaused    Presence = "paused"
	PresenceAvailable Presence = "available"
)

// Action is an outbound request sent through a live handle.
type Action struct {
	ChatID   string
	Presence Presence
}

// State is the registry state of a session.
type State string

// Registry states.
const (
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
)

// Entry is the registry record for one session.
type Entry struct {
	SessionID string
	Handle    Handle
	State     State
	User      *User
	Since     time.Time
}

// Handle is one live protocol connection.
//
// Events delivers events in arrival order and is closed after the single
// Closed event. Terminate is idempotent and must not block on event delivery.
type Handle interface {
	ID() string
	Events() <-chan Event
	Send(ctx context.Context, action Action) error
	Logout(ctx context.Context) error
	Terminate(reason Reason)
}

// Engine establishes protocol connections. ctx bounds only the
// establishment; the returned handle lives until it is closed.
type Engine interface {
	Connect(ctx context.Context, sessionID string, creds []byte) (Handle, error)
}

// CredentialStore persists credential blobs per session. Load and Delete
// return ErrCredentialsNotFound when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Save(ctx context.Context, sessionID string, creds []byte) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

// Notifier tells the external workflow system about bot lifecycle changes.
type Notifier interface {
	BotAdded(ctx context.Context, sessionID string, user User) error
	BotDeleted(ctx context.Context, sessionID string) error
}

// QRPublisher displays pairing codes.
type QRPublisher interface {
	PublishQR(sessionID, qr string)
	ClearQR(sessionID string)
}

// Observer receives lifecycle measurements. *metrics.SessionMetrics
// implements it.
type Observer interface {
	SetActive(n int)
	ConnectAttempted(err error)
	Reconnecting()
	Disconnected(statusCode int)
	CredentialsSaved(err error)
	Notified(event string, err error)
}

// Notification event names passed to Observer.Notified.
const (
	NotifyBotAdded   = "bot_added"
	NotifyBotDeleted = "bot_deleted"
)

type nopNotifier struct{}

func (nopNotifier) BotAdded(context.Context, string, User) error { return nil }
func (nopNotifier) BotDeleted(context.Context, string) error     { return nil }

type nopQR struct{}

func (nopQR) PublishQR(string, string) {}
func (nopQR) ClearQR(string)           {}

type nopObserver struct{}

func (nopObserver) SetActive(int)          {}
func (nopObserver) ConnectAttempted(error) {}
func (nopObserver) Reconnecting()          {}
func (nopObserver) Disconnected(int)       {}
func (nopObserver) CredentialsSaved(error) {}
func (nopObserver) Notified(string, error) {}
