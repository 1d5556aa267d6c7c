package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/prefixed_uuid"
)

const (
	writeWait    = 10 * time.Second
	closeWait    = time.Second
	maxFrameSize = 4 << 20
	eventBuffer  = 16
)

// Handle is one live gateway socket. It implements session.Handle.
type Handle struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	keepAlive time.Duration
	log       logger.Logger
	events    chan session.Event

	writeMu sync.Mutex

	once   sync.Once
	done   chan struct{} // closed by Terminate
	reason session.Reason

	stopped chan struct{} // closed when the read loop exits
}

var _ session.Handle = (*Handle)(nil)

func newHandle(conn *websocket.Conn, sessionID string, keepAlive time.Duration, log logger.Logger) *Handle {
	id := prefixed_uuid.New("conn").String()
	return &Handle{
		id:        id,
		sessionID: sessionID,
		conn:      conn,
		keepAlive: keepAlive,
		log:       log.WithFields(logger.SessionIDField(sessionID), logger.HandleIDField(id)),
		events:    make(chan session.Event, eventBuffer),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

func (h *Handle) ID() string                   { return h.id }
func (h *Handle) Events() <-chan session.Event { return h.events }

// Send writes an outbound action. Only presence updates are supported.
func (h *Handle) Send(ctx context.Context, action session.Action) error {
	return h.write(ctx, presenceFrame{
		Type:     FramePresence,
		ChatID:   action.ChatID,
		Presence: action.Presence,
	})
}

// Logout asks the gateway to unlink the device. The resulting close arrives
// as a Closed(LoggedOut) event unless the handle is terminated first.
func (h *Handle) Logout(ctx context.Context) error {
	return h.write(ctx, logoutFrame{Type: FrameLogout})
}

// Terminate closes the socket. It is idempotent and never waits for the
// event consumer.
func (h *Handle) Terminate(reason session.Reason) {
	h.once.Do(func() {
		h.reason = reason
		close(h.done)
		_ = h.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(reason)),
			time.Now().Add(closeWait))
		_ = h.conn.Close()
		h.log.Debug("Gateway connection terminated", logger.StringField("reason", string(reason)))
	})
}

func (h *Handle) start() {
	go h.readLoop()
	if h.keepAlive > 0 {
		go h.pingLoop()
	}
}

func (h *Handle) write(ctx context.Context, frame any) error {
	select {
	case <-h.done:
		return ErrHandleClosed
	default:
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = h.conn.SetWriteDeadline(deadline)
	if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (h *Handle) readLoop() {
	final := h.read()
	close(h.stopped)
	_ = h.conn.Close()
	h.finish(final)
}

// read consumes frames until the connection ends and returns the final
// Closed event.
func (h *Handle) read() session.Event {
	h.conn.SetReadLimit(maxFrameSize)
	h.extendReadDeadline()
	h.conn.SetPongHandler(func(string) error {
		h.extendReadDeadline()
		return nil
	})

	for {
		_, msg, err := h.conn.ReadMessage()
		if err != nil {
			return session.Closed(session.StatusConnectionLost, fmt.Errorf("read gateway frame: %w", err))
		}
		h.extendReadDeadline()

		var frame inboundFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			h.log.Warn("Discarding malformed gateway frame", logger.ErrorField(err))
			continue
		}

		ev, ok := frame.toEvent()
		if !ok {
			h.log.Debug("Ignoring gateway frame",
				logger.StringField("frame_type", frame.Type),
				logger.StringField("connection", frame.Connection))
			continue
		}
		if ev.Kind == session.EventClosed {
			return ev
		}

		select {
		case h.events <- ev:
		case <-h.done:
			return session.Closed(session.StatusUnknown, nil)
		}
	}
}

// finish emits the final Closed event and closes the stream. A locally
// terminated handle always reports its TerminatedError.
func (h *Handle) finish(final session.Event) {
	defer close(h.events)

	select {
	case <-h.done:
	default:
		select {
		case h.events <- final:
			return
		case <-h.done:
		}
	}

	// Nobody may be draining anymore, so the terminated event is best-effort.
	select {
	case h.events <- session.Closed(session.StatusUnknown, &session.TerminatedError{Reason: h.reason}):
	default:
	}
}

func (h *Handle) pingLoop() {
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-h.stopped:
			return
		case <-ticker.C:
			if err := h.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.log.Debug("Gateway ping failed", logger.ErrorField(err))
				return
			}
		}
	}
}

func (h *Handle) extendReadDeadline() {
	if h.keepAlive <= 0 {
		return
	}
	_ = h.conn.SetReadDeadline(time.Now().Add(2 * h.keepAlive))
}
