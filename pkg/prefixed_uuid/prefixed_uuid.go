// Package prefixed_uuid generates identifiers of the form "<prefix>-<uuid>",
// used for connection handle ids such as "conn-3f0c...".
package prefixed_uuid //nolint:revive // var-naming: established package name

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const uuidLen = 36

// PrefixedUUID is a UUID qualified by a type prefix.
type PrefixedUUID struct {
	Prefix string
	UUID   uuid.UUID
}

// New returns a random UUID with prefix.
func New(prefix string) PrefixedUUID {
	return PrefixedUUID{Prefix: prefix, UUID: uuid.New()}
}

// FromUUID qualifies an existing UUID.
func FromUUID(prefix string, id uuid.UUID) PrefixedUUID {
	return PrefixedUUID{Prefix: prefix, UUID: id}
}

// FromString parses "<prefix>-<uuid>". The prefix may itself contain dashes;
// the UUID is always the trailing 36 characters.
func FromString(s string) (PrefixedUUID, error) {
	if len(s) < uuidLen+2 || s[len(s)-uuidLen-1] != '-' {
		return PrefixedUUID{}, fmt.Errorf("invalid prefixed UUID format: %q", s)
	}

	id, err := uuid.Parse(s[len(s)-uuidLen:])
	if err != nil {
		return PrefixedUUID{}, fmt.Errorf("invalid UUID: %w", err)
	}
	return PrefixedUUID{Prefix: s[:len(s)-uuidLen-1], UUID: id}, nil
}

func (p PrefixedUUID) String() string {
	return p.Prefix + "-" + p.UUID.String()
}

// IsZero reports whether p is the zero value.
func (p PrefixedUUID) IsZero() bool {
	return p.Prefix == "" && p.UUID == uuid.Nil
}

// MarshalJSON encodes p as a JSON string.
func (p PrefixedUUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a JSON string produced by MarshalJSON.
func (p *PrefixedUUID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("prefixed UUID must be a JSON string: %w", err)
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
