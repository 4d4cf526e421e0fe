package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clientCredentialsScheme() *Scheme {
	return &Scheme{
		Type: SchemeTypeOAuth2,
		OAuth2: &OAuth2Scheme{Flows: OAuthFlows{
			ClientCredentials: &OAuthFlow{
				TokenURL: "https://auth.example/token",
				Scopes:   map[string]string{"r": "", "w": "write access"},
			},
		}},
	}
}

func TestCredentialKeyDeterminism(t *testing.T) {
	t.Parallel()

	scheme := clientCredentialsScheme()
	raw := &Credential{
		Type:   CredentialTypeOAuth2,
		OAuth2: &OAuth2Credential{ClientID: "c", ClientSecret: "s"},
	}

	k1 := CredentialKey(scheme, raw)
	k2 := CredentialKey(clientCredentialsScheme(), raw.Clone())
	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, string(SchemeTypeOAuth2))
	assert.Contains(t, k1, string(CredentialTypeOAuth2))
}

func TestCredentialKeyIgnoresExtraFields(t *testing.T) {
	t.Parallel()

	// Two configuration documents that differ only in open-schema extras
	// must produce the same key: decoding through the typed model drops
	// anything the model does not declare.
	doc1 := `{
		"type": "oauth2",
		"oauth2": {"flows": {"client_credentials": {"token_url": "https://auth.example/token", "scopes": {"r": ""}}}},
		"x-vendor-annotation": "anything"
	}`
	doc2 := `{
		"type": "oauth2",
		"comment": "same scheme, different decoration",
		"oauth2": {"flows": {"client_credentials": {"token_url": "https://auth.example/token", "scopes": {"r": ""}}}}
	}`

	var s1, s2 Scheme
	require.NoError(t, json.Unmarshal([]byte(doc1), &s1))
	require.NoError(t, json.Unmarshal([]byte(doc2), &s2))

	raw := &Credential{Type: CredentialTypeOAuth2, OAuth2: &OAuth2Credential{ClientID: "c"}}
	assert.Equal(t, CredentialKey(&s1, raw), CredentialKey(&s2, raw))
}

func TestCredentialKeyDistinguishesInputs(t *testing.T) {
	t.Parallel()

	scheme := clientCredentialsScheme()
	raw1 := &Credential{Type: CredentialTypeOAuth2, OAuth2: &OAuth2Credential{ClientID: "c1"}}
	raw2 := &Credential{Type: CredentialTypeOAuth2, OAuth2: &OAuth2Credential{ClientID: "c2"}}
	assert.NotEqual(t, CredentialKey(scheme, raw1), CredentialKey(scheme, raw2))

	other := clientCredentialsScheme()
	other.OAuth2.Flows.ClientCredentials.TokenURL = "https://other.example/token"
	assert.NotEqual(t, CredentialKey(scheme, raw1), CredentialKey(other, raw1))
}

func TestCredentialKeyNilInputs(t *testing.T) {
	t.Parallel()

	key := CredentialKey(nil, nil)
	assert.Equal(t, "none_none_none_none", key)

	scheme := &Scheme{Type: SchemeTypeAPIKey, APIKey: &APIKeyScheme{In: APIKeyInHeader, Name: "X-API-Key"}}
	assert.Equal(t, CredentialKey(scheme, nil), CredentialKey(scheme, nil))
}
