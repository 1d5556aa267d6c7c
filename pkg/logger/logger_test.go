package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newBufferedLogger(level Level) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(Config{Level: level, Format: "json", Service: "test-service", Output: &buf}), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerOutput(t *testing.T) {
	log, buf := newBufferedLogger(InfoLevel)

	log.Info("session opened", SessionIDField("bot-1"), StatusCodeField(440))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "session opened", entries[0]["msg"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "test-service", entries[0]["service"])
	assert.Equal(t, "bot-1", entries[0]["session_id"])
	assert.Equal(t, "440", entries[0]["status_code"])
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    Level
		expected []string
	}{
		{name: "debug shows everything", level: DebugLevel, expected: []string{"debug", "info", "warning", "error"}},
		{name: "info hides debug", level: InfoLevel, expected: []string{"info", "warning", "error"}},
		{name: "error only", level: ErrorLevel, expected: []string{"error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newBufferedLogger(tt.level)
			log.Debug("d")
			log.Info("i")
			log.Warn("w")
			log.Error("e")

			var levels []string
			for _, entry := range decodeLines(t, buf) {
				levels = append(levels, entry["level"].(string))
			}
			assert.Equal(t, tt.expected, levels)
		})
	}
}

func TestLoggerWithFieldsIsImmutable(t *testing.T) {
	log, buf := newBufferedLogger(InfoLevel)

	child := log.WithFields(StringField("component", "supervisor"))
	child.Info("from child")
	log.Info("from parent")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "supervisor", entries[0]["component"])
	_, ok := entries[1]["component"]
	assert.False(t, ok, "parent logger must not inherit child fields")
}

func TestLoggerCallSiteFieldsOverrideBoundFields(t *testing.T) {
	log, buf := newBufferedLogger(InfoLevel)

	log.WithFields(StringField("k", "bound")).Info("msg", StringField("k", "call"))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "call", entries[0]["k"])
}

func TestWithCorrelationID(t *testing.T) {
	log, buf := newBufferedLogger(InfoLevel)

	log.WithCorrelationID("abc").Info("msg")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0][CorrelationIDFieldKey])
}

func TestFieldHelpers(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		field LogField
		key   string
		value string
	}{
		{"string", StringField("k", "v"), "k", "v"},
		{"int", IntField("k", 42), "k", "42"},
		{"int64", Int64Field("k", 1<<40), "k", "1099511627776"},
		{"bool", BoolField("k", true), "k", "true"},
		{"duration", DurationField("k", 3*time.Second), "k", "3s"},
		{"time", TimeField("k", ts), "k", "2024-05-01T12:00:00Z"},
		{"error", ErrorField(errors.New("boom")), "error", "boom"},
		{"nil error", ErrorField(nil), "error", "<nil>"},
		{"generic float", Field("k", 1.5), "k", "1.5"},
		{"generic duration", Field("k", time.Minute), "k", "1m0s"},
		{"generic slice", Field("k", []string{"a", "b"}), "k", "[a b]"},
		{"session id", SessionIDField("bot"), "session_id", "bot"},
		{"handle id", HandleIDField("conn-1"), "handle_id", "conn-1"},
		{"http status", HTTPStatusField(404), "http_status", "404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.field.Key)
			assert.Equal(t, tt.value, tt.field.Value)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
	assert.Equal(t, "warn", WarnLevel.String())
}

func TestEnsureHTTPCorrelationID(t *testing.T) {
	t.Run("keeps a valid id", func(t *testing.T) {
		id := uuid.New().String()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(CorrelationIDHeader, id)

		r, got := EnsureHTTPCorrelationID(r)
		assert.Equal(t, id, got)
		assert.Equal(t, id, GetCorrelationIDFromContext(r.Context()))
	})

	t.Run("replaces an invalid id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(CorrelationIDHeader, "not-a-uuid")

		r, got := EnsureHTTPCorrelationID(r)
		_, err := uuid.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, got, r.Header.Get(CorrelationIDHeader))
	})
}

func TestEnsureCorrelationIDFromMetadata(t *testing.T) {
	id := uuid.New().String()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(CorrelationIDMetadataKey, id))

	ctx, got := EnsureCorrelationID(ctx)
	assert.Equal(t, id, got)
	assert.Equal(t, id, GetCorrelationIDFromContext(ctx))
}

func TestHTTPMiddleware(t *testing.T) {
	log, buf := newBufferedLogger(InfoLevel)

	handler := log.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetCorrelationIDFromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/whatsapp/bot/addBot", nil))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "HTTP response sent", entries[0]["msg"])
	assert.Equal(t, "418", entries[0]["http_status"])
	assert.Equal(t, "15", entries[0]["response_bytes"])
	assert.Equal(t, "/whatsapp/bot/addBot", entries[0]["http_path"])
}

func TestGrpcRequestsInterceptor(t *testing.T) {
	log, buf := newBufferedLogger(InfoLevel)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	_, err := log.GrpcRequestsInterceptor(context.Background(), nil, info,
		func(ctx context.Context, req interface{}) (interface{}, error) {
			assert.NotEmpty(t, GetCorrelationIDFromContext(ctx))
			return nil, status.Error(codes.Unavailable, "not serving")
		})
	require.Error(t, err)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0]["level"])
	assert.Equal(t, "Unavailable", entries[0]["grpc_code"])
	assert.Equal(t, "/grpc.health.v1.Health/Check", entries[0]["grpc_method"])
}
