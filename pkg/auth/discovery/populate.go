package discovery

import "github.com/loopwork/agentry/pkg/auth"

// PopulateScheme fills the scheme's missing OAuth endpoints from resolved
// metadata and returns the result. The input scheme is not modified; all
// writes happen on a clone.
//
// For OAuth2 schemes each configured flow gets its missing
// authorization_url / token_url. For discoverable OIDC schemes the
// endpoint set is copied over and the scheme becomes a plain
// openIdConnect scheme.
func PopulateScheme(scheme *auth.Scheme, md *Metadata) *auth.Scheme {
	if scheme == nil || md == nil {
		return scheme
	}
	out := scheme.Clone()

	switch out.Type {
	case auth.SchemeTypeOAuth2:
		if out.OAuth2 == nil {
			return out
		}
		for _, flow := range []*auth.OAuthFlow{
			out.OAuth2.Flows.Implicit,
			out.OAuth2.Flows.Password,
			out.OAuth2.Flows.ClientCredentials,
			out.OAuth2.Flows.AuthorizationCode,
		} {
			if flow == nil {
				continue
			}
			if flow.AuthorizationURL == "" {
				flow.AuthorizationURL = md.AuthorizationEndpoint
			}
			if flow.TokenURL == "" {
				flow.TokenURL = md.TokenEndpoint
			}
		}

	case auth.SchemeTypeOpenIDConnect, auth.SchemeTypeOpenIDConnectDiscoverable:
		if out.OpenIDConnect == nil {
			out.OpenIDConnect = &auth.OpenIDConnectScheme{}
		}
		oidc := out.OpenIDConnect
		if oidc.AuthorizationEndpoint == "" {
			oidc.AuthorizationEndpoint = md.AuthorizationEndpoint
		}
		if oidc.TokenEndpoint == "" {
			oidc.TokenEndpoint = md.TokenEndpoint
		}
		if oidc.UserinfoEndpoint == "" {
			oidc.UserinfoEndpoint = md.UserinfoEndpoint
		}
		if oidc.RevocationEndpoint == "" {
			oidc.RevocationEndpoint = md.RevocationEndpoint
		}
		if len(oidc.GrantTypesSupported) == 0 {
			oidc.GrantTypesSupported = append([]string(nil), md.GrantTypesSupported...)
		}
		if len(oidc.Scopes) == 0 {
			oidc.Scopes = append([]string(nil), md.ScopesSupported...)
		}
		out.Type = auth.SchemeTypeOpenIDConnect
	}
	return out
}
