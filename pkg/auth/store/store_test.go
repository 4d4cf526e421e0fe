package store

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopwork/agentry/pkg/auth"
)

func apiKeyConfig(key string) *auth.Config {
	return &auth.Config{
		Scheme: &auth.Scheme{
			Type:   auth.SchemeTypeAPIKey,
			APIKey: &auth.APIKeyScheme{In: auth.APIKeyInHeader, Name: "X-Api-Key"},
		},
		Raw: &auth.Credential{Type: auth.CredentialTypeAPIKey, APIKey: key},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	state := map[string]any{}
	s := New(state)

	cfg := apiKeyConfig("secret")
	require.Nil(t, s.Get(cfg))

	cfg.Exchanged = &auth.Credential{Type: auth.CredentialTypeAPIKey, APIKey: "secret"}
	s.Put(cfg)

	got := s.Get(cfg)
	require.NotNil(t, got)
	assert.Equal(t, "secret", got.APIKey)

	// Entries are namespaced away from other state.
	require.Len(t, state, 1)
	for k := range state {
		assert.True(t, strings.HasPrefix(k, KeyPrefix))
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	s := New(map[string]any{})
	cfg := apiKeyConfig("secret")
	cfg.Exchanged = &auth.Credential{Type: auth.CredentialTypeAPIKey, APIKey: "secret"}
	s.Put(cfg)

	got := s.Get(cfg)
	got.APIKey = "mutated"
	assert.Equal(t, "secret", s.Get(cfg).APIKey)
}

func TestStoreKeyedByFingerprint(t *testing.T) {
	t.Parallel()

	s := New(map[string]any{})

	a := apiKeyConfig("alpha")
	a.Exchanged = a.Raw.Clone()
	s.Put(a)

	b := apiKeyConfig("beta")
	require.Nil(t, s.Get(b), "distinct credentials must not share an entry")

	b.Exchanged = b.Raw.Clone()
	s.Put(b)
	assert.Equal(t, "alpha", s.Get(a).APIKey)
	assert.Equal(t, "beta", s.Get(b).APIKey)
}

func TestStoreDecodesSerializedEntries(t *testing.T) {
	t.Parallel()

	cfg := apiKeyConfig("secret")
	cred := &auth.Credential{
		Type: auth.CredentialTypeOAuth2,
		OAuth2: &auth.OAuth2Credential{
			ClientID:    "client",
			AccessToken: "token",
		},
	}
	data, err := json.Marshal(cred)
	require.NoError(t, err)

	// A durable backend may hand values back as JSON text or as the
	// generic shape produced by unmarshalling into any.
	var generic any
	require.NoError(t, json.Unmarshal(data, &generic))

	tests := []struct {
		name  string
		value any
	}{
		{name: "bytes", value: data},
		{name: "string", value: string(data)},
		{name: "generic map", value: generic},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New(map[string]any{StateKey(cfg): tt.value})
			got := s.Get(cfg)
			require.NotNil(t, got)
			require.NotNil(t, got.OAuth2)
			assert.Equal(t, "token", got.OAuth2.AccessToken)
		})
	}
}

func TestStoreDiscardsGarbage(t *testing.T) {
	t.Parallel()

	cfg := apiKeyConfig("secret")
	s := New(map[string]any{StateKey(cfg): "not json"})
	assert.Nil(t, s.Get(cfg))
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()

	s := New(map[string]any{})
	cfg := apiKeyConfig("secret")
	cfg.Exchanged = cfg.Raw.Clone()
	s.Put(cfg)
	require.NotNil(t, s.Get(cfg))

	s.Delete(cfg)
	assert.Nil(t, s.Get(cfg))
}

func TestStorePutWithoutExchangedClears(t *testing.T) {
	t.Parallel()

	s := New(map[string]any{})
	cfg := apiKeyConfig("secret")
	cfg.Exchanged = cfg.Raw.Clone()
	s.Put(cfg)

	cfg.Exchanged = nil
	s.Put(cfg)
	assert.Nil(t, s.Get(cfg))
}
