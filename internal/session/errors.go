package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the session has neither a live handle nor stored credentials.
	ErrNotFound = errors.New("session not found")
	// ErrNotConnected means the session exists but has not finished connecting.
	ErrNotConnected = errors.New("session not connected")
	// ErrCredentialsNotFound is returned by credential stores for unknown sessions.
	ErrCredentialsNotFound = errors.New("credentials not found")
	// ErrClosed is returned once the supervisor has been shut down.
	ErrClosed = errors.New("supervisor closed")
)

// InputError reports a missing or malformed caller-supplied field.
type InputError struct {
	Field string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// EngineConnectError reports that the protocol engine could not establish a
// connection. It is not retried.
type EngineConnectError struct {
	SessionID string
	Err       error
}

func (e *EngineConnectError) Error() string {
	return fmt.Sprintf("failed to connect session %s: %v", e.SessionID, e.Err)
}

func (e *EngineConnectError) Unwrap() error { return e.Err }

// StoreError reports a credential store failure.
type StoreError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *StoreError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("credential store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("credential store %s for session %s failed: %v", e.Op, e.SessionID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
