package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/internal/storage"
)

// BlobStore keeps one object per session in a storage.Provider (local disk
// or S3). Object names are the escaped session id plus KeySuffix so an id
// can never address a path outside the provider.
type BlobStore struct {
	provider storage.Provider
}

// NewBlobStore creates a store over provider.
func NewBlobStore(provider storage.Provider) *BlobStore {
	return &BlobStore{provider: provider}
}

func (s *BlobStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := s.provider.Read(ctx, objectName(sessionID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, session.ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return data, nil
}

func (s *BlobStore) Save(ctx context.Context, sessionID string, creds []byte) error {
	if err := s.provider.Write(ctx, objectName(sessionID), creds); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (s *BlobStore) Delete(ctx context.Context, sessionID string) error {
	name := objectName(sessionID)
	exists, err := s.provider.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("stat credentials: %w", err)
	}
	if !exists {
		return session.ErrCredentialsNotFound
	}
	if err := s.provider.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

func (s *BlobStore) List(ctx context.Context) ([]string, error) {
	names, err := s.provider.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if strings.Contains(name, "/") || !strings.HasSuffix(name, KeySuffix) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, KeySuffix))
		if err != nil || id == "" {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func objectName(sessionID string) string {
	return url.PathEscape(sessionID) + KeySuffix
}
