package exchange

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/loopwork/agentry/pkg/auth"
	"github.com/loopwork/agentry/pkg/logger"
)

// Token endpoint auth method names per RFC 7591.
const (
	authMethodClientSecretBasic = "client_secret_basic"
	authMethodClientSecretPost  = "client_secret_post"
)

// OAuth2Exchanger acquires tokens for OAuth2 and OpenID Connect
// credentials, using the client-credentials grant when the scheme declares
// it and the authorization-code grant otherwise.
//
// Grant failures are soft: the original credential is returned with
// Exchanged=false, and a retry re-enters the full pipeline.
type OAuth2Exchanger struct{}

// Exchange implements Exchanger.
func (e *OAuth2Exchanger) Exchange(ctx context.Context, cred *auth.Credential, scheme *auth.Scheme) (*Result, error) {
	if cred.OAuth2 == nil {
		return nil, fmt.Errorf("%w: %s credential has no oauth2 payload", auth.ErrInvalidCredentialShape, cred.Type)
	}

	// Already exchanged; nothing to do.
	if cred.OAuth2.AccessToken != "" {
		return &Result{Credential: cred, Exchanged: false}, nil
	}

	if scheme.SupportsClientCredentials() {
		return e.clientCredentials(ctx, cred, scheme)
	}
	return e.authorizationCode(ctx, cred, scheme)
}

func (*OAuth2Exchanger) clientCredentials(ctx context.Context, cred *auth.Credential, scheme *auth.Scheme) (*Result, error) {
	tokenURL := scheme.TokenEndpoint()
	if tokenURL == "" {
		return nil, fmt.Errorf("%w: client-credentials flow has no token URL", auth.ErrEndpointResolutionFailed)
	}

	cc := &clientcredentials.Config{
		ClientID:     cred.OAuth2.ClientID,
		ClientSecret: cred.OAuth2.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       credentialScopes(cred, scheme),
		AuthStyle:    authStyle(cred.OAuth2.TokenEndpointAuthMethod),
	}

	token, err := cc.Token(ctx)
	if err != nil {
		logger.Warnf("Client-credentials token exchange at %s failed: %v", tokenURL, err)
		return &Result{Credential: cred, Exchanged: false}, nil
	}

	out := cred.Clone()
	out.OAuth2.ApplyToken(token.AccessToken, token.RefreshToken, token.Expiry)
	return &Result{Credential: out, Exchanged: true}, nil
}

func (*OAuth2Exchanger) authorizationCode(ctx context.Context, cred *auth.Credential, scheme *auth.Scheme) (*Result, error) {
	code := cred.OAuth2.AuthorizationCode()
	if code == "" {
		// No user authorization has arrived yet; the handler turns this
		// into a pending request.
		return &Result{Credential: cred, Exchanged: false}, nil
	}

	conf := &oauth2.Config{
		ClientID:     cred.OAuth2.ClientID,
		ClientSecret: cred.OAuth2.ClientSecret,
		RedirectURL:  cred.OAuth2.RedirectURI,
		Scopes:       credentialScopes(cred, scheme),
		Endpoint: oauth2.Endpoint{
			AuthURL:   scheme.AuthorizationEndpoint(),
			TokenURL:  scheme.TokenEndpoint(),
			AuthStyle: authStyle(cred.OAuth2.TokenEndpointAuthMethod),
		},
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		logger.Warnf("Authorization-code token exchange at %s failed: %v", conf.Endpoint.TokenURL, err)
		return &Result{Credential: cred, Exchanged: false}, nil
	}

	out := cred.Clone()
	out.OAuth2.ApplyToken(token.AccessToken, token.RefreshToken, token.Expiry)
	return &Result{Credential: out, Exchanged: true}, nil
}

// credentialScopes prefers the credential's configured scopes, falling
// back to the scheme's declared scope names.
func credentialScopes(cred *auth.Credential, scheme *auth.Scheme) []string {
	if len(cred.OAuth2.Scopes) > 0 {
		return cred.OAuth2.Scopes
	}
	return scheme.ScopeNames()
}

// authStyle maps a token_endpoint_auth_method to the oauth2 library's
// auth style. Unknown or empty methods auto-detect.
func authStyle(method string) oauth2.AuthStyle {
	switch method {
	case authMethodClientSecretBasic:
		return oauth2.AuthStyleInHeader
	case authMethodClientSecretPost:
		return oauth2.AuthStyleInParams
	default:
		return oauth2.AuthStyleAutoDetect
	}
}
