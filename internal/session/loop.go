package session

import (
	"errors"
	"time"

	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

var errStreamEnded = errors.New("event stream ended without close event")

// consume processes one handle's events in arrival order until it closes.
func (s *Supervisor) consume(id string, h Handle) {
	defer s.loops.Done()

	log := s.log.WithFields(logger.SessionIDField(id), logger.HandleIDField(h.ID()))
	defer func() {
		if r := recover(); r != nil {
			log.Error("Session event loop panicked", logger.Field("panic", r))
			s.drop(id, h)
		}
	}()

	for ev := range h.Events() {
		switch ev.Kind {
		case EventOpening:
			if ev.QR != "" {
				s.qr.PublishQR(id, ev.QR)
			}
		case EventOpen:
			s.onOpen(id, h, ev.User, log)
		case EventCredentialsUpdated:
			s.onCredentials(id, h, ev.Credentials, log)
		case EventClosed:
			s.onClosed(id, h, ev, log)
			return
		default:
			log.Debug("Ignoring unknown event", logger.StringField("kind", ev.Kind.String()))
		}
	}

	log.Warn("Event stream ended without close event")
	s.onClosed(id, h, Closed(StatusUnknown, errStreamEnded), log)
}

func (s *Supervisor) onOpen(id string, h Handle, user User, log logger.Logger) {
	current := func() bool {
		unlock := s.locks.Lock(id)
		defer unlock()
		if !s.registry.Holds(id, h) {
			return false
		}
		s.registry.Put(id, Entry{Handle: h, State: StateConnected, User: &user, Since: time.Now()})
		return true
	}()
	if !current {
		log.Debug("Ignoring open event from stale handle")
		return
	}

	log.Info("Session connected", logger.StringField("user_id", user.ID))
	s.qr.ClearQR(id)

	err := s.notifier.BotAdded(s.baseCtx, id, user)
	s.observer.Notified(NotifyBotAdded, err)
	if err != nil {
		log.Warn("Failed to notify bot added", logger.ErrorField(err))
	}
}

// onCredentials saves synchronously so the next event is only handled once
// the update is durable. Updates from stale handles are dropped so a
// deleted session cannot get its credentials back.
func (s *Supervisor) onCredentials(id string, h Handle, creds []byte, log logger.Logger) {
	unlock := s.locks.Lock(id)
	defer unlock()

	if !s.registry.Holds(id, h) {
		log.Debug("Ignoring credentials from stale handle")
		return
	}

	err := s.store.Save(s.baseCtx, id, creds)
	s.observer.CredentialsSaved(err)
	if err != nil {
		log.Error("Failed to persist credentials", logger.ErrorField(&StoreError{Op: "save", SessionID: id, Err: err}))
	}
}

func (s *Supervisor) onClosed(id string, h Handle, ev Event, log logger.Logger) {
	s.observer.Disconnected(int(ev.StatusCode))

	disposition := DispositionFor(ev.StatusCode)
	fields := []logger.LogField{
		logger.StatusCodeField(int(ev.StatusCode)),
		logger.StringField("status", ev.StatusCode.String()),
		logger.StringField("disposition", disposition.String()),
	}
	if ev.Err != nil {
		fields = append(fields, logger.ErrorField(ev.Err))
	}

	current, err := s.applyDisposition(id, h, disposition)
	if !current {
		log.Debug("Handle closed after being replaced or removed", fields...)
		return
	}

	switch disposition {
	case DispositionStop:
		log.Warn("Session closed, not reconnecting", fields...)

	case DispositionLogout:
		log.Warn("Session logged out, credentials erased", fields...)
		if err != nil {
			log.Error("Failed to erase credentials", logger.ErrorField(err))
		}
		s.notifyDeleted(s.baseCtx, id, log)

	default:
		if err != nil {
			log.Error("Session closed, reconnect failed", append(fields, logger.StringField("reconnect_error", err.Error()))...)
			return
		}
		log.Info("Session closed, reconnected", fields...)
	}
}

// applyDisposition performs the registry and store side of the disconnect
// policy under the session lock. It reports false when h no longer owned
// the entry, in which case nothing was done.
func (s *Supervisor) applyDisposition(id string, h Handle, d Disposition) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	if s.isClosed() || !s.registry.RemoveHandle(id, h) {
		return false, nil
	}
	s.observer.SetActive(s.registry.Len())

	switch d {
	case DispositionLogout:
		if err := s.store.Delete(s.baseCtx, id); err != nil && !errors.Is(err, ErrCredentialsNotFound) {
			return true, &StoreError{Op: "delete", SessionID: id, Err: err}
		}
	case DispositionReconnect:
		s.observer.Reconnecting()
		return true, s.startLocked(s.baseCtx, id)
	}
	return true, nil
}

// drop evicts h after its loop failed.
func (s *Supervisor) drop(id string, h Handle) {
	unlock := s.locks.Lock(id)
	defer unlock()
	if s.registry.RemoveHandle(id, h) {
		s.observer.SetActive(s.registry.Len())
	}
	h.Terminate(ReasonInternalError)
}
