package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	os.Clearenv()
	for k, v := range env {
		t.Setenv(k, v)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigValidate(t *testing.T) {
	out, err := execute(t, map[string]string{"CREDENTIALS_BACKEND": "memory"}, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	_, err = execute(t, map[string]string{"CREDENTIALS_BACKEND": "git"}, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials backend must be one of")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("credentials:\n  backend: ${TEST_BACKEND}\n"), 0o600))

	out, err := execute(t, map[string]string{"TEST_BACKEND": "memory"}, "--config-file", path, "--log-level", "debug", "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	_, err = execute(t, nil, "--config-file", filepath.Join(t.TempDir(), "missing.yaml"), "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, "session-server dev\n", out)
}

func TestHealthCommand(t *testing.T) {
	status := http.StatusOK
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/live", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()

	out, err := execute(t, nil, "health", "--url", ts.URL+"/health/live")
	require.NoError(t, err)
	assert.Contains(t, out, `"status":"ok"`)

	status = http.StatusServiceUnavailable
	_, err = execute(t, nil, "health", "--url", ts.URL+"/health/live")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHealthCommandUnreachable(t *testing.T) {
	_, err := execute(t, map[string]string{"HEALTH_PORT": "1"}, "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health probe failed")
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	_, err := execute(t, map[string]string{"GATEWAY_URL": "http://gateway"}, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
