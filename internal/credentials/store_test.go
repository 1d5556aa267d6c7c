package credentials

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/whatsapp_session_manager/internal/credentials/sqlc"
	"github.com/lewisedginton/whatsapp_session_manager/internal/session"
	"github.com/lewisedginton/whatsapp_session_manager/internal/storage"
	"github.com/lewisedginton/whatsapp_session_manager/pkg/logger"
)

// testStore checks the behaviour every backend must provide to the supervisor.
func testStore(t *testing.T, store session.CredentialStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx, "bot-1")
	assert.ErrorIs(t, err, session.ErrCredentialsNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "bot-1"), session.ErrCredentialsNotFound)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.Save(ctx, "bot-1", []byte(`{"me":"1"}`)))
	require.NoError(t, store.Save(ctx, "bot-2", []byte(`{"me":"2"}`)))
	require.NoError(t, store.Save(ctx, "bot-1", []byte(`{"me":"1b"}`)))

	creds, err := store.Load(ctx, "bot-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"me":"1b"}`), creds)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	sort.Strings(ids)
	assert.Equal(t, []string{"bot-1", "bot-2"}, ids)

	require.NoError(t, store.Delete(ctx, "bot-1"))
	_, err = store.Load(ctx, "bot-1")
	assert.ErrorIs(t, err, session.ErrCredentialsNotFound)

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bot-2"}, ids)

	// an id that prefixes another id owns only its own record
	require.NoError(t, store.Save(ctx, "acme", []byte("a")))
	require.NoError(t, store.Save(ctx, "acme:sales", []byte("s")))

	ids, err = store.List(ctx)
	require.NoError(t, err)
	sort.Strings(ids)
	assert.Equal(t, []string{"acme", "acme:sales", "bot-2"}, ids)

	require.NoError(t, store.Delete(ctx, "acme:sales"))
	creds, err = store.Load(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), creds)

	require.NoError(t, store.Save(ctx, "acme:sales", []byte("s")))
	require.NoError(t, store.Delete(ctx, "acme"))
	creds, err = store.Load(ctx, "acme:sales")
	require.NoError(t, err)
	assert.Equal(t, []byte("s"), creds)

	require.NoError(t, store.Delete(ctx, "acme:sales"))
	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bot-2"}, ids)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "bot-1:auth_creds", Key("bot-1"))

	tests := []struct {
		key  string
		id   string
		isOK bool
	}{
		{"bot-1:auth_creds", "bot-1", true},
		{"bot-1:pre-key-7", "", false},
		{"a:b:auth_creds", "a:b", true},
		{":auth_creds", "", false},
		{"auth_creds", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			id, ok := SessionIDFromKey(tt.key)
			assert.Equal(t, tt.isOK, ok)
			if tt.isOK {
				assert.Equal(t, tt.id, id)
			}
		})
	}

	assert.Equal(t, []string{"a", "a:x", "b"},
		sessionIDsFromKeys([]string{"a:auth_creds", "a:x:auth_creds", "a:session-1", "b:auth_creds"}))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesBlobs(t *testing.T) {
	store := NewMemoryStore()
	creds := []byte("abc")
	require.NoError(t, store.Save(context.Background(), "bot", creds))
	creds[0] = 'x'

	got, err := store.Load(context.Background(), "bot")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestBlobStore(t *testing.T) {
	testStore(t, NewBlobStore(storage.NewLocalProvider(t.TempDir())))
}

func TestBlobStoreEscapesIDs(t *testing.T) {
	ctx := context.Background()
	root := storage.NewLocalProvider(t.TempDir())
	store := NewBlobStore(storage.NewPrefixedProvider(root, "credentials"))

	require.NoError(t, store.Save(ctx, "../escape", []byte("x")))
	require.NoError(t, store.Save(ctx, "50%_off", []byte("y")))
	require.NoError(t, root.Write(ctx, "credentials/notes.txt", []byte("ignored")))

	files, err := root.List(ctx, "")
	require.NoError(t, err)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f, "credentials/"), f)
	}

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"../escape", "50%_off"}, ids)

	got, err := store.Load(ctx, "../escape")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

type fakeQuerier struct {
	mu      sync.Mutex
	rows    map[string][]byte
	listErr error
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{rows: make(map[string][]byte)}
}

func (q *fakeQuerier) GetAuthData(_ context.Context, sessionKey string) (sqlc.AuthDatum, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	data, ok := q.rows[sessionKey]
	if !ok {
		return sqlc.AuthDatum{}, pgx.ErrNoRows
	}
	return sqlc.AuthDatum{SessionKey: sessionKey, Data: data}, nil
}

func (q *fakeQuerier) UpsertAuthData(_ context.Context, arg sqlc.UpsertAuthDataParams) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rows[arg.SessionKey] = arg.Data
	return nil
}

func (q *fakeQuerier) DeleteAuthData(_ context.Context, sessionKey string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.rows[sessionKey]; !ok {
		return 0, nil
	}
	delete(q.rows, sessionKey)
	return 1, nil
}

func (q *fakeQuerier) ListSessionKeys(_ context.Context, suffix string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.listErr != nil {
		return nil, q.listErr
	}
	var keys []string
	for key := range q.rows {
		if strings.HasSuffix(key, suffix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func newTestPostgresStore(q sqlc.Querier) *PostgresStore {
	return &PostgresStore{queries: q, logger: logger.NewNopLogger()}
}

func TestPostgresStore(t *testing.T) {
	testStore(t, newTestPostgresStore(newFakeQuerier()))
}

func TestPostgresStoreDeleteKeepsOtherSessions(t *testing.T) {
	q := newFakeQuerier()
	store := newTestPostgresStore(q)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "acme", []byte("a")))
	require.NoError(t, store.Save(ctx, "acme:sales", []byte("s")))
	q.rows["acme:pre-key-1"] = []byte("k")

	require.NoError(t, store.Delete(ctx, "acme"))
	assert.Equal(t, map[string][]byte{
		"acme:sales:auth_creds": []byte("s"),
		"acme:pre-key-1":        []byte("k"),
	}, q.rows)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme:sales"}, ids)
}

func TestPostgresStoreErrors(t *testing.T) {
	q := newFakeQuerier()
	q.listErr = errors.New("connection refused")
	store := newTestPostgresStore(q)

	_, err := store.List(context.Background())
	assert.ErrorIs(t, err, q.listErr)
	assert.Error(t, store.Ping(context.Background()), "no pool configured")
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "plain-id", escapeGlob("plain-id"))
	assert.Equal(t, `a\*b\?c\[d\]e\\f`, escapeGlob(`a*b?c[d]e\f`))
}

// TestRedisStore runs against a real server when REDIS_TEST_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	prefix := "test:" + uuid.NewString() + ":"
	store := NewRedisStore(client, prefix, logger.NewNopLogger())
	testStore(t, store)
	require.NoError(t, store.Ping(context.Background()))

	t.Cleanup(func() {
		_ = store.Delete(context.Background(), "bot-2")
	})
}

// TestRedisClusterStore runs against a real cluster when
// REDIS_TEST_CLUSTER_ADDRS is set (comma separated seed nodes).
func TestRedisClusterStore(t *testing.T) {
	addrs := os.Getenv("REDIS_TEST_CLUSTER_ADDRS")
	if addrs == "" {
		t.Skip("REDIS_TEST_CLUSTER_ADDRS not set")
	}

	client := redis.NewClusterClient(&redis.ClusterOptions{Addrs: strings.Split(addrs, ",")})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	prefix := "test:" + uuid.NewString() + ":"
	store := NewRedisStore(client, prefix, logger.NewNopLogger())
	testStore(t, store)

	t.Cleanup(func() {
		_ = store.Delete(context.Background(), "bot-2")
	})
}

func TestRedisStoreUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "", logger.NewNopLogger())
	ctx := context.Background()

	_, err := store.Load(ctx, "bot")
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrCredentialsNotFound)

	_, err = store.List(ctx)
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, "bot"))
	assert.Error(t, store.Save(ctx, "bot", []byte("x")))
	assert.Error(t, store.Ping(ctx))
}
