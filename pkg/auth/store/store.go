// Package store persists processed credentials in an invocation's state
// map, keyed by the owning config's credential fingerprint.
//
// The store is a pure accessor: it never exchanges, refreshes, or
// validates what it holds. Freshness decisions belong to the credential
// manager.
package store

import (
	"encoding/json"

	"github.com/loopwork/agentry/pkg/auth"
	"github.com/loopwork/agentry/pkg/logger"
)

// KeyPrefix namespaces credential entries inside the shared state map so
// they cannot collide with host or agent state.
const KeyPrefix = "agentry_credential_"

// Store reads and writes credentials in a state map. The map is owned by
// the invocation; the store adds no locking of its own.
type Store struct {
	state map[string]any
}

// New returns a Store over the given state map.
func New(state map[string]any) *Store {
	return &Store{state: state}
}

// StateKey returns the state-map key for a config's credential.
func StateKey(cfg *auth.Config) string {
	return KeyPrefix + cfg.CredentialKey()
}

// Get returns the credential stored for the config, or nil when none is
// present. Entries that were serialized by a durable state backend are
// decoded transparently.
func (s *Store) Get(cfg *auth.Config) *auth.Credential {
	raw, ok := s.state[StateKey(cfg)]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case *auth.Credential:
		return v.Clone()
	case []byte:
		return decode(v)
	case string:
		return decode([]byte(v))
	default:
		// Durable backends round-trip values through JSON.
		data, err := json.Marshal(v)
		if err != nil {
			logger.Warnf("discarding unreadable stored credential for key %q: %v", cfg.CredentialKey(), err)
			return nil
		}
		return decode(data)
	}
}

// Put stores the config's exchanged credential, replacing any previous
// entry. A config without an exchanged credential removes the entry.
func (s *Store) Put(cfg *auth.Config) {
	key := StateKey(cfg)
	if cfg.Exchanged == nil {
		delete(s.state, key)
		return
	}
	s.state[key] = cfg.Exchanged.Clone()
}

// Delete removes the entry for the config, if any.
func (s *Store) Delete(cfg *auth.Config) {
	delete(s.state, StateKey(cfg))
}

func decode(data []byte) *auth.Credential {
	var cred auth.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		logger.Warnf("discarding undecodable stored credential: %v", err)
		return nil
	}
	return &cred
}
