package gateway

import (
	"encoding/json"

	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
)

// Frame types exchanged with the protocol gateway.
const (
	FrameConnect          = "connect"
	FramePresence         = "presence"
	FrameLogout           = "logout"
	FrameConnectionUpdate = "connection.update"
	FrameCredsUpdate      = "creds.update"
)

// Connection states carried by connection.update frames.
const (
	ConnectionConnecting = "connecting"
	ConnectionOpen       = "open"
	ConnectionClose      = "close"
)

// connectFrame opens a session on the gateway.
type connectFrame struct {
	Type                string          `json:"type"`
	SessionID           string          `json:"sessionId"`
	Credentials         json.RawMessage `json:"credentials"`
	Browser             []string        `json:"browser"`
	KeepAliveIntervalMs int64           `json:"keepAliveIntervalMs"`
}

type presenceFrame struct {
	Type     string           `json:"type"`
	ChatID   string           `json:"chatId"`
	Presence session.Presence `json:"presence"`
}

type logoutFrame struct {
	Type string `json:"type"`
}

// inboundFrame is the union of every gateway to client frame.
type inboundFrame struct {
	Type        string          `json:"type"`
	Connection  string          `json:"connection,omitempty"`
	QR          string          `json:"qr,omitempty"`
	User        *session.User   `json:"user,omitempty"`
	StatusCode  int             `json:"statusCode,omitempty"`
	Error       string          `json:"error,omitempty"`
	Credentials json.RawMessage `json:"credentials,omitempty"`
}

// toEvent maps a frame to a session event. ok is false for frames that carry
// nothing the supervisor acts on.
func (f inboundFrame) toEvent() (session.Event, bool) {
	switch f.Type {
	case FrameCredsUpdate:
		if len(f.Credentials) == 0 {
			return session.Event{}, false
		}
		return session.CredentialsUpdated([]byte(f.Credentials)), true

	case FrameConnectionUpdate:
		switch f.Connection {
		case ConnectionOpen:
			var user session.User
			if f.User != nil {
				user = *f.User
			}
			return session.Open(user), true
		case ConnectionClose:
			var err error
			if f.Error != "" {
				err = &RemoteError{StatusCode: f.StatusCode, Message: f.Error}
			}
			return session.Closed(session.StatusCode(f.StatusCode), err), true
		case ConnectionConnecting:
			return session.Opening(f.QR), true
		case "":
			// QR refreshes arrive without a connection state.
			if f.QR != "" {
				return session.Opening(f.QR), true
			}
		}
	}
	return session.Event{}, false
}
