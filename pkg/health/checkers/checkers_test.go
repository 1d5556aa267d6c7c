package checkers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPChecker(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"no content", http.StatusNoContent, false},
		{"client error still reachable", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, true},
		{"unavailable", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			err := NewHTTPChecker(srv.URL, "gateway").Check(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPCheckerDefaultsAndTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewHTTPCheckerWithClient(srv.URL, "", &http.Client{Timeout: 20 * time.Millisecond})
	assert.Equal(t, srv.URL, c.Name())

	err := c.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http request failed")
}

func TestRedisChecker(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = client.Close() }()

	assert.Equal(t, "redis", NewRedisChecker(client, "").Name())

	c := NewRedisChecker(client, "redis-credentials")
	assert.Equal(t, "redis-credentials", c.Name())

	err := c.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestPingChecker(t *testing.T) {
	assert.Equal(t, "postgres", NewPingChecker(fakePinger{}, "").Name())
	assert.NoError(t, NewPingChecker(fakePinger{}, "db").Check(context.Background()))

	err := NewPingChecker(fakePinger{err: errors.New("refused")}, "db").Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db ping failed")
}
