package credentials

import (
	"context"
	"sort"
	"sync"

	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
)

// MemoryStore keeps credentials in process memory. It backs local
// development and loses everything on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.blobs[sessionID]
	if !ok {
		return nil, session.ErrCredentialsNotFound
	}
	return append([]byte(nil), creds...), nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, creds []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[sessionID] = append([]byte(nil), creds...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[sessionID]; !ok {
		return session.ErrCredentialsNotFound
	}
	delete(s.blobs, sessionID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.blobs))
	for id := range s.blobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
