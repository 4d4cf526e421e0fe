// Package auth defines the declarative model for tool authentication:
// security schemes, credentials, auth configs, and the invocation-context
// contract the credential pipeline operates against.
//
// Schemes follow the OpenAPI 3.0 Security Scheme object; credentials carry
// the matching secret material. Both are tagged variants: a Type
// discriminator plus exactly one populated payload.
package auth

import "sort"

// SchemeType identifies a security scheme variant.
type SchemeType string

const (
	// SchemeTypeAPIKey is API key authentication (header, query, or cookie).
	SchemeTypeAPIKey SchemeType = "apiKey"
	// SchemeTypeHTTP is HTTP authentication (basic, bearer, ...).
	SchemeTypeHTTP SchemeType = "http"
	// SchemeTypeOAuth2 is OAuth 2.0 with explicitly configured flows.
	SchemeTypeOAuth2 SchemeType = "oauth2"
	// SchemeTypeOpenIDConnect is OpenID Connect with known endpoints.
	SchemeTypeOpenIDConnect SchemeType = "openIdConnect"
	// SchemeTypeOpenIDConnectDiscoverable is OpenID Connect configured with
	// only an issuer URL; endpoints are resolved via OIDC discovery before
	// the scheme is usable.
	SchemeTypeOpenIDConnectDiscoverable SchemeType = "openIdConnectDiscoverable"
)

// APIKeyLocation says where an API key is transmitted.
type APIKeyLocation string

const (
	// APIKeyInHeader places the key in an HTTP header.
	APIKeyInHeader APIKeyLocation = "header"
	// APIKeyInQuery places the key in a query parameter.
	APIKeyInQuery APIKeyLocation = "query"
	// APIKeyInCookie places the key in a cookie.
	APIKeyInCookie APIKeyLocation = "cookie"
)

// HTTP authorization scheme names used by HTTPScheme and HTTPCredential.
const (
	HTTPSchemeBasic  = "basic"
	HTTPSchemeBearer = "bearer"
)

// Scheme is a tagged variant describing how a credential is transmitted and
// obtained. Exactly one payload field matching Type is set.
type Scheme struct {
	Type SchemeType `json:"type"`

	APIKey        *APIKeyScheme        `json:"api_key,omitempty"`
	HTTP          *HTTPScheme          `json:"http,omitempty"`
	OAuth2        *OAuth2Scheme        `json:"oauth2,omitempty"`
	OpenIDConnect *OpenIDConnectScheme `json:"openid_connect,omitempty"`
}

// APIKeyScheme describes API key placement.
type APIKeyScheme struct {
	// In is where the key is sent: header, query, or cookie.
	In APIKeyLocation `json:"in"`
	// Name is the header, query parameter, or cookie name.
	Name string `json:"name"`
}

// HTTPScheme describes HTTP authentication per RFC 7235.
type HTTPScheme struct {
	// Scheme is the authorization scheme, e.g. "basic" or "bearer".
	Scheme string `json:"scheme"`
	// BearerFormat is a hint about the bearer token format, e.g. "JWT".
	BearerFormat string `json:"bearer_format,omitempty"`
}

// OAuth2Scheme describes OAuth 2.0 flows and their endpoints.
type OAuth2Scheme struct {
	Flows OAuthFlows `json:"flows"`
}

// OAuthFlows holds the per-flow configuration. At least one flow must be
// populated before the scheme is usable.
type OAuthFlows struct {
	Implicit          *OAuthFlow `json:"implicit,omitempty"`
	Password          *OAuthFlow `json:"password,omitempty"`
	ClientCredentials *OAuthFlow `json:"client_credentials,omitempty"`
	AuthorizationCode *OAuthFlow `json:"authorization_code,omitempty"`
}

// OAuthFlow is the endpoint and scope configuration for a single flow.
// Which URLs are required depends on the flow: authorization-code needs
// both, client-credentials only the token URL.
type OAuthFlow struct {
	AuthorizationURL string `json:"authorization_url,omitempty"`
	TokenURL         string `json:"token_url,omitempty"`
	RefreshURL       string `json:"refresh_url,omitempty"`
	// Scopes maps scope name to its human-readable description.
	Scopes map[string]string `json:"scopes,omitempty"`
}

// OpenIDConnectScheme describes an OpenID Connect provider. When only
// IssuerURL is set (SchemeTypeOpenIDConnectDiscoverable), the remaining
// endpoints are filled in from the provider's discovery document.
type OpenIDConnectScheme struct {
	IssuerURL             string   `json:"issuer_url,omitempty"`
	AuthorizationEndpoint string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint         string   `json:"token_endpoint,omitempty"`
	UserinfoEndpoint      string   `json:"userinfo_endpoint,omitempty"`
	RevocationEndpoint    string   `json:"revocation_endpoint,omitempty"`
	GrantTypesSupported   []string `json:"grant_types_supported,omitempty"`
	Scopes                []string `json:"scopes,omitempty"`
}

// IsOAuth reports whether the scheme requires an OAuth-style credential.
func (s *Scheme) IsOAuth() bool {
	switch s.Type {
	case SchemeTypeOAuth2, SchemeTypeOpenIDConnect, SchemeTypeOpenIDConnectDiscoverable:
		return true
	default:
		return false
	}
}

// SupportsClientCredentials reports whether the scheme is configured for
// the client-credentials grant. For OIDC this is driven by
// grant_types_supported; for plain OAuth2 by the presence of the flow.
func (s *Scheme) SupportsClientCredentials() bool {
	switch s.Type {
	case SchemeTypeOAuth2:
		return s.OAuth2 != nil && s.OAuth2.Flows.ClientCredentials != nil
	case SchemeTypeOpenIDConnect, SchemeTypeOpenIDConnectDiscoverable:
		if s.OpenIDConnect == nil {
			return false
		}
		for _, gt := range s.OpenIDConnect.GrantTypesSupported {
			if gt == "client_credentials" {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// TokenEndpoint returns the token URL for the preferred flow, or "" when
// none is configured. Preference order mirrors grant selection:
// client-credentials, authorization-code, password, implicit.
func (s *Scheme) TokenEndpoint() string {
	switch s.Type {
	case SchemeTypeOAuth2:
		if s.OAuth2 == nil {
			return ""
		}
		for _, f := range s.OAuth2.Flows.ordered() {
			if f != nil && f.TokenURL != "" {
				return f.TokenURL
			}
		}
		return ""
	case SchemeTypeOpenIDConnect, SchemeTypeOpenIDConnectDiscoverable:
		if s.OpenIDConnect == nil {
			return ""
		}
		return s.OpenIDConnect.TokenEndpoint
	default:
		return ""
	}
}

// AuthorizationEndpoint returns the authorization URL for the preferred
// flow, or "" when none is configured.
func (s *Scheme) AuthorizationEndpoint() string {
	switch s.Type {
	case SchemeTypeOAuth2:
		if s.OAuth2 == nil {
			return ""
		}
		for _, f := range []*OAuthFlow{
			s.OAuth2.Flows.AuthorizationCode,
			s.OAuth2.Flows.Implicit,
		} {
			if f != nil && f.AuthorizationURL != "" {
				return f.AuthorizationURL
			}
		}
		return ""
	case SchemeTypeOpenIDConnect, SchemeTypeOpenIDConnectDiscoverable:
		if s.OpenIDConnect == nil {
			return ""
		}
		return s.OpenIDConnect.AuthorizationEndpoint
	default:
		return ""
	}
}

// ScopeNames returns the scheme's scope names, sorted.
func (s *Scheme) ScopeNames() []string {
	var scopes []string
	switch s.Type {
	case SchemeTypeOAuth2:
		if s.OAuth2 == nil {
			return nil
		}
		seen := map[string]bool{}
		for _, f := range s.OAuth2.Flows.ordered() {
			if f == nil {
				continue
			}
			for name := range f.Scopes {
				if !seen[name] {
					seen[name] = true
					scopes = append(scopes, name)
				}
			}
		}
	case SchemeTypeOpenIDConnect, SchemeTypeOpenIDConnectDiscoverable:
		if s.OpenIDConnect == nil {
			return nil
		}
		scopes = append(scopes, s.OpenIDConnect.Scopes...)
	}
	sort.Strings(scopes)
	return scopes
}

// NeedsDiscovery reports whether OAuth endpoints are missing and must be
// resolved from the issuer's discovery document before use.
func (s *Scheme) NeedsDiscovery() bool {
	if !s.IsOAuth() {
		return false
	}
	return s.TokenEndpoint() == "" && s.AuthorizationEndpoint() == ""
}

// Clone returns a deep copy of the scheme. Discovery and the credential
// pipeline populate endpoints on clones; configured schemes are never
// mutated in place.
func (s *Scheme) Clone() *Scheme {
	if s == nil {
		return nil
	}
	out := *s
	if s.APIKey != nil {
		k := *s.APIKey
		out.APIKey = &k
	}
	if s.HTTP != nil {
		h := *s.HTTP
		out.HTTP = &h
	}
	if s.OAuth2 != nil {
		o := OAuth2Scheme{Flows: OAuthFlows{
			Implicit:          s.OAuth2.Flows.Implicit.clone(),
			Password:          s.OAuth2.Flows.Password.clone(),
			ClientCredentials: s.OAuth2.Flows.ClientCredentials.clone(),
			AuthorizationCode: s.OAuth2.Flows.AuthorizationCode.clone(),
		}}
		out.OAuth2 = &o
	}
	if s.OpenIDConnect != nil {
		oidc := *s.OpenIDConnect
		oidc.GrantTypesSupported = append([]string(nil), s.OpenIDConnect.GrantTypesSupported...)
		oidc.Scopes = append([]string(nil), s.OpenIDConnect.Scopes...)
		out.OpenIDConnect = &oidc
	}
	return &out
}

func (f *OAuthFlow) clone() *OAuthFlow {
	if f == nil {
		return nil
	}
	out := *f
	if f.Scopes != nil {
		out.Scopes = make(map[string]string, len(f.Scopes))
		for k, v := range f.Scopes {
			out.Scopes[k] = v
		}
	}
	return &out
}

// ordered returns the flows in grant-selection preference order.
func (f *OAuthFlows) ordered() []*OAuthFlow {
	return []*OAuthFlow{f.ClientCredentials, f.AuthorizationCode, f.Password, f.Implicit}
}
