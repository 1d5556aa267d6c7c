package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// Defaults for Options.
const (
	DefaultRestartAllDelay = 3 * time.Second
	DefaultConnectTimeout  = 30 * time.Second
)

// Options configures a Supervisor. Zero values select the defaults. A
// negative RestartAllDelay restarts back to back and a negative
// ConnectTimeout disables the bound on Engine.Connect.
type Options struct {
	RestartAllDelay time.Duration
	ConnectTimeout  time.Duration

	Logger   logger.Logger
	Notifier Notifier
	QR       QRPublisher
	Observer Observer
	Registry *Registry
}

// Supervisor is the only component that connects sessions or mutates the
// registry. Every operation on a session id runs under that id's lock, so
// lifecycle calls and the event loop's reactions never interleave.
type Supervisor struct {
	engine   Engine
	store    CredentialStore
	registry *Registry
	locks    *keyedMutex

	notifier Notifier
	qr       QRPublisher
	observer Observer
	log      logger.Logger

	restartAllDelay time.Duration
	connectTimeout  time.Duration

	// baseCtx outlives individual requests; reconnects and background
	// store writes use it.
	baseCtx context.Context
	cancel  context.CancelFunc

	lifecycle sync.RWMutex
	closed    bool
	loops     sync.WaitGroup
}

// NewSupervisor creates a supervisor over engine and store.
func NewSupervisor(engine Engine, store CredentialStore, opts Options) *Supervisor {
	s := &Supervisor{
		engine:          engine,
		store:           store,
		registry:        opts.Registry,
		locks:           newKeyedMutex(),
		notifier:        opts.Notifier,
		qr:              opts.QR,
		observer:        opts.Observer,
		log:             opts.Logger,
		restartAllDelay: opts.RestartAllDelay,
		connectTimeout:  opts.ConnectTimeout,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.qr == nil {
		s.qr = nopQR{}
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.log == nil {
		s.log = logger.NewNopLogger()
	}
	if s.restartAllDelay == 0 {
		s.restartAllDelay = DefaultRestartAllDelay
	}
	if s.connectTimeout == 0 {
		s.connectTimeout = DefaultConnectTimeout
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Registry exposes the registry for read-only use.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Start connects id unless it already has an entry. It returns once the
// engine accepted the connection, without waiting for it to open.
func (s *Supervisor) Start(ctx context.Context, id string) error {
	if id == "" {
		return &InputError{Field: "sessionId"}
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.startLocked(ctx, id)
}

func (s *Supervisor) startLocked(ctx context.Context, id string) error {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()
	if s.closed {
		return ErrClosed
	}

	log := s.log.WithFields(logger.SessionIDField(id))

	if e, ok := s.registry.Get(id); ok {
		log.Debug("Session already active", logger.StringField("state", string(e.State)))
		return nil
	}

	creds, err := s.store.Load(ctx, id)
	switch {
	case errors.Is(err, ErrCredentialsNotFound):
		log.Info("No stored credentials, starting fresh pairing")
		creds = nil
	case err != nil:
		return &StoreError{Op: "load", SessionID: id, Err: err}
	}

	connectCtx := ctx
	if s.connectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, s.connectTimeout)
		defer cancel()
	}

	h, err := s.engine.Connect(connectCtx, id, creds)
	s.observer.ConnectAttempted(err)
	if err != nil {
		return &EngineConnectError{SessionID: id, Err: err}
	}

	s.registry.Put(id, Entry{Handle: h, State: StateConnecting, Since: time.Now()})
	s.observer.SetActive(s.registry.Len())

	s.loops.Add(1)
	go s.consume(id, h)

	log.Info("Session connecting", logger.HandleIDField(h.ID()))
	return nil
}

// Restart forces a fresh connection for id. The registered handle, connected
// or still connecting, is terminated and the event loop reconnects it.
// Without an entry Restart behaves like Start.
func (s *Supervisor) Restart(ctx context.Context, id string) error {
	if id == "" {
		return &InputError{Field: "sessionId"}
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	e, ok := s.registry.Get(id)
	if !ok {
		return s.startLocked(ctx, id)
	}
	s.log.Info("Restarting session",
		logger.SessionIDField(id),
		logger.HandleIDField(e.Handle.ID()),
		logger.StringField("state", string(e.State)),
	)
	e.Handle.Terminate(ReasonRestartRequested)
	return nil
}

// Delete logs out and terminates any live handle, then erases the stored
// credentials and the registry entry. It returns ErrNotFound only when
// there was neither a handle nor stored credentials. A logout failure is
// returned after the cleanup has run.
func (s *Supervisor) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &InputError{Field: "sessionId"}
	}
	unlock := s.locks.Lock(id)

	log := s.log.WithFields(logger.SessionIDField(id))
	e, hadHandle := s.registry.Get(id)

	var logoutErr error
	if hadHandle {
		if err := e.Handle.Logout(ctx); err != nil {
			logoutErr = fmt.Errorf("failed to log out session %s: %w", id, err)
			log.Warn("Logout failed, terminating anyway", logger.ErrorField(err))
		}
		e.Handle.Terminate(ReasonAdminDelete)
	}

	s.registry.Remove(id)
	s.observer.SetActive(s.registry.Len())
	storeErr := s.store.Delete(ctx, id)
	unlock()

	switch {
	case errors.Is(storeErr, ErrCredentialsNotFound):
		if !hadHandle {
			return ErrNotFound
		}
	case storeErr != nil:
		return &StoreError{Op: "delete", SessionID: id, Err: storeErr}
	}

	log.Info("Session deleted", logger.BoolField("had_handle", hadHandle))
	if hadHandle {
		s.notifyDeleted(context.WithoutCancel(ctx), id, log)
	}
	return logoutErr
}

// RestartAll restarts every session with stored credentials, one at a
// time, waiting the configured delay between sessions. Failures are
// collected and do not stop the batch; cancelling ctx does.
func (s *Supervisor) RestartAll(ctx context.Context) error {
	ids, err := s.store.List(ctx)
	if err != nil {
		return &StoreError{Op: "list", Err: err}
	}
	s.log.Info("Restarting all sessions",
		logger.IntField("count", len(ids)),
		logger.DurationField("delay", s.restartAllDelay))

	var result error
	for i, id := range ids {
		if i > 0 {
			if err := sleepCtx(ctx, s.restartAllDelay); err != nil {
				return multierror.Append(result, err)
			}
		}
		if err := s.Restart(ctx, id); err != nil {
			s.log.Error("Failed to restart session", logger.SessionIDField(id), logger.ErrorField(err))
			result = multierror.Append(result, err)
		}
	}
	return result
}

// Info returns the registry entry for id.
func (s *Supervisor) Info(id string) (Entry, error) {
	e, ok := s.registry.Get(id)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

// List returns every registry entry ordered by id.
func (s *Supervisor) List() []Entry {
	return s.registry.List()
}

// SendPresence sends a presence update (typing indicator by default) to
// chatID through the session's connected handle.
func (s *Supervisor) SendPresence(ctx context.Context, id, chatID string, presence Presence) error {
	switch {
	case id == "":
		return &InputError{Field: "botId"}
	case chatID == "":
		return &InputError{Field: "chatId"}
	}
	if presence == "" {
		presence = PresenceComposing
	}

	e, ok := s.registry.Get(id)
	if !ok {
		return ErrNotFound
	}
	if e.State != StateConnected {
		return ErrNotConnected
	}
	return e.Handle.Send(ctx, Action{ChatID: chatID, Presence: presence})
}

// Close terminates every handle without reconnecting and waits for the
// event loops to finish or ctx to expire.
func (s *Supervisor) Close(ctx context.Context) error {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		return nil
	}
	s.closed = true
	s.lifecycle.Unlock()

	entries := s.registry.List()
	s.log.Info("Shutting down sessions", logger.IntField("count", len(entries)))
	for _, e := range entries {
		unlock := s.locks.Lock(e.SessionID)
		if s.registry.RemoveHandle(e.SessionID, e.Handle) {
			e.Handle.Terminate(ReasonShutdown)
		}
		unlock()
	}
	s.observer.SetActive(s.registry.Len())

	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(done)
	}()

	defer s.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session loops: %w", ctx.Err())
	}
}

func (s *Supervisor) isClosed() bool {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()
	return s.closed
}

func (s *Supervisor) notifyDeleted(ctx context.Context, id string, log logger.Logger) {
	err := s.notifier.BotDeleted(ctx, id)
	s.observer.Notified(NotifyBotDeleted, err)
	if err != nil {
		log.Warn("Failed to notify bot deleted", logger.ErrorField(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
