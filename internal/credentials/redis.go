package credentials

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

const scanBatch = 100

// RedisStore keeps each credential blob in a plain string key
// "{prefix}{id}:auth_creds".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	logger logger.Logger
}

// NewRedisStore creates a store. prefix namespaces every key and may be empty.
func NewRedisStore(client redis.UniversalClient, prefix string, log logger.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, logger: log}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+Key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, creds []byte) error {
	if err := s.client.Set(ctx, s.prefix+Key(sessionID), creds, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	n, err := s.client.Del(ctx, s.prefix+Key(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return session.ErrCredentialsNotFound
	}
	s.logger.Debug("Deleted credentials", logger.SessionIDField(sessionID))
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.scan(ctx, escapeGlob(s.prefix)+"*"+KeySuffix)
	if err != nil {
		return nil, err
	}

	trimmed := make([]string, 0, len(keys))
	for _, key := range keys {
		trimmed = append(trimmed, strings.TrimPrefix(key, s.prefix))
	}
	return sessionIDsFromKeys(trimmed), nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// scan collects keys matching pattern. A cluster client is walked master by
// master since SCAN only covers the node it runs on. SCAN may repeat keys,
// so results are de-duplicated.
func (s *RedisStore) scan(ctx context.Context, pattern string) ([]string, error) {
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		keys []string
	)
	scanNode := func(ctx context.Context, client redis.Cmdable) error {
		iter := client.Scan(ctx, 0, pattern, scanBatch).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			mu.Lock()
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
			mu.Unlock()
		}
		return iter.Err()
	}

	var err error
	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		err = cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return scanNode(ctx, node)
		})
	} else {
		err = scanNode(ctx, s.client)
	}
	if err != nil {
		return nil, fmt.Errorf("redis scan %q: %w", pattern, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// escapeGlob quotes the characters SCAN MATCH treats as wildcards.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
