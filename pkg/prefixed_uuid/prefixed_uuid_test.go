package prefixed_uuid

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixed = "123e4567-e89b-12d3-a456-426614174000"

func TestNew(t *testing.T) {
	a, b := New("conn"), New("conn")
	assert.Equal(t, "conn", a.Prefix)
	assert.NotEqual(t, uuid.Nil, a.UUID)
	assert.NotEqual(t, a.String(), b.String())
	assert.False(t, a.IsZero())
	assert.True(t, PrefixedUUID{}.IsZero())
}

func TestFromString(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantPrefix string
		wantErr    bool
	}{
		{"simple prefix", "conn-" + fixed, "conn", false},
		{"dashed prefix", "gateway-conn-" + fixed, "gateway-conn", false},
		{"missing prefix", fixed, "", true},
		{"empty prefix", "-" + fixed, "", true},
		{"bad uuid", "conn-123e4567-e89b-12d3-a456-42661417400z", "", true},
		{"too short", "conn-1234", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrefix, got.Prefix)
			assert.Equal(t, fixed, got.UUID.String())
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestJSON(t *testing.T) {
	p := FromUUID("conn", uuid.MustParse(fixed))

	data, err := json.Marshal(map[string]PrefixedUUID{"handle": p})
	require.NoError(t, err)
	assert.JSONEq(t, `{"handle":"conn-`+fixed+`"}`, string(data))

	var out map[string]PrefixedUUID
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, p, out["handle"])

	var bad PrefixedUUID
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
}
