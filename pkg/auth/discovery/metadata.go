// Package discovery resolves authorization-server metadata for OAuth2 and
// OpenID Connect schemes.
//
// It implements the well-known endpoint ordering of RFC 8414 and OpenID
// Connect Discovery, including the path-insertion and path-appending forms
// used by multi-tenant issuers, plus RFC 9728 protected-resource metadata.
package discovery

import (
	"fmt"
	"strings"

	"github.com/loopwork/agentry/pkg/networking"
)

// Metadata is the authorization-server metadata document defined by
// RFC 8414 and OpenID Connect Discovery. Only the fields the credential
// pipeline consumes are modeled.
type Metadata struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint         string   `json:"token_endpoint,omitempty"`
	UserinfoEndpoint      string   `json:"userinfo_endpoint,omitempty"`
	RevocationEndpoint    string   `json:"revocation_endpoint,omitempty"`
	RegistrationEndpoint  string   `json:"registration_endpoint,omitempty"`
	JWKSURI               string   `json:"jwks_uri,omitempty"`
	ScopesSupported       []string `json:"scopes_supported,omitempty"`
	GrantTypesSupported   []string `json:"grant_types_supported,omitempty"`
}

// Validate checks the structural requirements of the document and that the
// issuer matches the URL the metadata was requested for. A mismatched
// issuer is the signature of a mix-up attack and must be rejected.
func (m *Metadata) Validate(requestedIssuer string, insecureAllowHTTP bool) error {
	if m.Issuer == "" {
		return fmt.Errorf("metadata missing required 'issuer' field")
	}
	if m.AuthorizationEndpoint == "" && m.TokenEndpoint == "" {
		return fmt.Errorf("metadata has neither authorization_endpoint nor token_endpoint")
	}
	if !issuersEqual(m.Issuer, requestedIssuer) {
		return fmt.Errorf("issuer mismatch: expected %s, got %s", requestedIssuer, m.Issuer)
	}
	for name, endpoint := range map[string]string{
		"authorization_endpoint": m.AuthorizationEndpoint,
		"token_endpoint":         m.TokenEndpoint,
		"userinfo_endpoint":      m.UserinfoEndpoint,
		"revocation_endpoint":    m.RevocationEndpoint,
		"registration_endpoint":  m.RegistrationEndpoint,
	} {
		if endpoint == "" {
			continue
		}
		if err := networking.ValidateEndpointURLWithInsecure(endpoint, insecureAllowHTTP); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// issuersEqual compares issuer identifiers, tolerating a single trailing
// slash on either side.
func issuersEqual(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// ResourceMetadata is the OAuth protected-resource metadata document
// defined by RFC 9728.
type ResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
	JWKSURI                string   `json:"jwks_uri,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}
