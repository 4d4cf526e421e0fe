package auth

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

// CredentialType identifies a credential variant.
type CredentialType string

const (
	// CredentialTypeAPIKey is a plain API key.
	CredentialTypeAPIKey CredentialType = "apiKey"
	// CredentialTypeHTTP is HTTP basic or bearer material.
	CredentialTypeHTTP CredentialType = "http"
	// CredentialTypeOAuth2 is OAuth 2.0 client and token material.
	CredentialTypeOAuth2 CredentialType = "oauth2"
	// CredentialTypeOpenIDConnect is OAuth2 material obtained through an
	// OpenID Connect provider. It shares the OAuth2 payload.
	CredentialTypeOpenIDConnect CredentialType = "openIdConnect"
	// CredentialTypeServiceAccount is platform service-account material.
	CredentialTypeServiceAccount CredentialType = "serviceAccount"
)

// Credential is a tagged variant holding the secret material for one
// scheme. Raw credentials come from configuration and are never mutated;
// the pipeline produces exchanged credentials on clones.
type Credential struct {
	Type CredentialType `json:"type"`

	APIKey         string                    `json:"api_key,omitempty"`
	HTTP           *HTTPCredential           `json:"http,omitempty"`
	OAuth2         *OAuth2Credential         `json:"oauth2,omitempty"`
	ServiceAccount *ServiceAccountCredential `json:"service_account,omitempty"`
}

// HTTPCredential is material for HTTP authentication schemes.
type HTTPCredential struct {
	// Scheme is the authorization scheme, e.g. "basic" or "bearer".
	Scheme   string `json:"scheme"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// OAuth2Credential is OAuth 2.0 client configuration plus any token state
// accumulated by the exchange and refresh pipelines.
type OAuth2Credential struct {
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	RedirectURI  string   `json:"redirect_uri,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`

	// AuthURI and State are written by the handler when user authorization
	// is required; the host routes the user through AuthURI and the state
	// value round-trips for correlation.
	AuthURI string `json:"auth_uri,omitempty"`
	State   string `json:"state,omitempty"`

	// Audience, when set, is forwarded to the authorization endpoint for
	// providers that issue audience-restricted tokens.
	Audience string `json:"audience,omitempty"`

	// AuthCode and AuthResponseURI carry the user's authorization-code
	// callback data back into the pipeline.
	AuthCode        string `json:"auth_code,omitempty"`
	AuthResponseURI string `json:"auth_response_uri,omitempty"`

	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	// ExpiresAt is the access token expiry as a Unix timestamp in seconds.
	ExpiresAt int64 `json:"expires_at,omitempty"`
	// ExpiresIn is the lifetime in seconds as reported by the token
	// endpoint. ExpiresAt is authoritative; ExpiresIn is kept for hosts
	// that surface it.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// TokenEndpointAuthMethod selects how client credentials are sent to
	// the token endpoint: "client_secret_basic" (default) or
	// "client_secret_post".
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method,omitempty"`
}

// ServiceAccountCredential is platform service-account configuration.
type ServiceAccountCredential struct {
	// UseDefaultCredential selects the platform's ambient credentials
	// instead of explicit key material.
	UseDefaultCredential bool `json:"use_default_credential,omitempty"`
	// Key is the service-account key JSON.
	Key    json.RawMessage `json:"service_account_info,omitempty"`
	Scopes []string        `json:"scopes,omitempty"`
}

// Ready reports whether the credential can be used as-is, with no
// exchange, discovery, or user interaction.
func (c *Credential) Ready() bool {
	return c.Type == CredentialTypeAPIKey || c.Type == CredentialTypeHTTP
}

// Expired reports whether the credential's access token expiry has passed.
// Credentials without expiry information are assumed valid.
func (c *Credential) Expired(now time.Time) bool {
	if c.OAuth2 == nil || c.OAuth2.ExpiresAt == 0 {
		return false
	}
	return now.After(time.Unix(c.OAuth2.ExpiresAt, 0))
}

// BearerToken returns the usable bearer token held by this credential:
// the HTTP token for bearer credentials, or the OAuth2 access token for
// exchanged OAuth2/OIDC credentials. Empty when neither is present.
func (c *Credential) BearerToken() string {
	switch c.Type {
	case CredentialTypeHTTP:
		if c.HTTP != nil && c.HTTP.Scheme == HTTPSchemeBearer {
			return c.HTTP.Token
		}
	case CredentialTypeOAuth2, CredentialTypeOpenIDConnect:
		if c.OAuth2 != nil {
			return c.OAuth2.AccessToken
		}
	}
	return ""
}

// ToBearer converts an exchanged OAuth2/OIDC credential into an HTTP
// bearer credential for request construction. Credentials without an
// access token convert to nil.
func (c *Credential) ToBearer() *Credential {
	token := c.BearerToken()
	if token == "" {
		return nil
	}
	return &Credential{
		Type: CredentialTypeHTTP,
		HTTP: &HTTPCredential{Scheme: HTTPSchemeBearer, Token: token},
	}
}

// Clone returns a deep copy of the credential.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	if c.HTTP != nil {
		h := *c.HTTP
		out.HTTP = &h
	}
	if c.OAuth2 != nil {
		o := *c.OAuth2
		o.Scopes = append([]string(nil), c.OAuth2.Scopes...)
		out.OAuth2 = &o
	}
	if c.ServiceAccount != nil {
		sa := *c.ServiceAccount
		sa.Key = append(json.RawMessage(nil), c.ServiceAccount.Key...)
		sa.Scopes = append([]string(nil), c.ServiceAccount.Scopes...)
		out.ServiceAccount = &sa
	}
	return &out
}

// AuthorizationCode returns the authorization code the credential
// carries: the explicit auth_code, or the code query parameter of the
// authorization response URI. A trailing fragment marker left by some
// user agents is stripped first. Empty when no code has arrived, which
// includes denied-consent callbacks (error=access_denied and no code).
func (o *OAuth2Credential) AuthorizationCode() string {
	if o.AuthCode != "" {
		return o.AuthCode
	}
	if o.AuthResponseURI == "" {
		return ""
	}
	u, err := url.Parse(strings.TrimSuffix(o.AuthResponseURI, "#"))
	if err != nil {
		return ""
	}
	return u.Query().Get("code")
}

// ApplyToken writes the fields of a token response onto the credential,
// replacing any previous token state. timestamps are derived from expiry.
func (o *OAuth2Credential) ApplyToken(accessToken, refreshToken string, expiry time.Time) {
	o.AccessToken = accessToken
	if refreshToken != "" {
		o.RefreshToken = refreshToken
	}
	if !expiry.IsZero() {
		o.ExpiresAt = expiry.Unix()
		o.ExpiresIn = int64(time.Until(expiry).Seconds())
	}
}
