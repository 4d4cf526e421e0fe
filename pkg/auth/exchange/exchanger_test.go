package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopwork/agentry/pkg/auth"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(auth.CredentialTypeAPIKey, &NoopExchanger{}))

	ex, err := r.Get(auth.CredentialTypeAPIKey)
	require.NoError(t, err)
	assert.NotNil(t, ex)

	_, err = r.Get(auth.CredentialTypeOAuth2)
	assert.Error(t, err)
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.Error(t, r.Register("", &NoopExchanger{}))
	assert.Error(t, r.Register(auth.CredentialTypeAPIKey, nil))

	require.NoError(t, r.Register(auth.CredentialTypeAPIKey, &NoopExchanger{}))
	assert.Error(t, r.Register(auth.CredentialTypeAPIKey, &NoopExchanger{}),
		"duplicate registration must be rejected")
}

func TestDefaultRegistryCoversAllKinds(t *testing.T) {
	t.Parallel()

	r := NewDefaultRegistry()
	for _, kind := range []auth.CredentialType{
		auth.CredentialTypeAPIKey,
		auth.CredentialTypeHTTP,
		auth.CredentialTypeOAuth2,
		auth.CredentialTypeOpenIDConnect,
		auth.CredentialTypeServiceAccount,
	} {
		_, err := r.Get(kind)
		assert.NoError(t, err, "kind %s", kind)
	}
}

func TestNoopExchangerPassesThrough(t *testing.T) {
	t.Parallel()

	cred := &auth.Credential{Type: auth.CredentialTypeAPIKey, APIKey: "k1"}
	res, err := (&NoopExchanger{}).Exchange(context.Background(), cred, nil)
	require.NoError(t, err)
	assert.False(t, res.Exchanged)
	assert.Same(t, cred, res.Credential)
}
