// Package credentials persists the opaque credential blob of each WhatsApp
// session. Every backend stores one record per session under the key
// "{id}:auth_creds" and enumerates sessions by that suffix.
package credentials

import "strings"

// KeySuffix marks the credential record of a session.
const KeySuffix = ":auth_creds"

// Key returns the storage key of sessionID's credentials.
func Key(sessionID string) string {
	return sessionID + KeySuffix
}

// SessionIDFromKey extracts the session id from a credential key. Ids are
// opaque and may themselves contain ":", so only the suffix is stripped.
// ok is false for keys without the credential suffix.
func SessionIDFromKey(key string) (id string, ok bool) {
	id, ok = strings.CutSuffix(key, KeySuffix)
	return id, ok && id != ""
}

// sessionIDsFromKeys maps keys to unique session ids, skipping foreign keys.
func sessionIDsFromKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id, ok := SessionIDFromKey(key)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
