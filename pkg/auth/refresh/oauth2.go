package refresh

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/loopwork/agentry/pkg/auth"
	"github.com/loopwork/agentry/pkg/logger"
)

// OAuth2Refresher refreshes OAuth2 and OpenID Connect access tokens with
// the refresh_token grant.
type OAuth2Refresher struct{}

// NeedsRefresh reports whether the credential carries an expired access
// token. A credential without an absolute expiry is treated as not
// expiring: a relative expires_in alone says nothing once it has left the
// token response.
func (*OAuth2Refresher) NeedsRefresh(cred *auth.Credential, _ *auth.Scheme) bool {
	if cred == nil || cred.OAuth2 == nil {
		return false
	}
	if cred.OAuth2.AccessToken == "" {
		return false
	}
	return cred.Expired(time.Now())
}

// Refresh exchanges the stored refresh token for a fresh access token.
//
// Failures are soft: without a refresh token or token endpoint, or when
// the authorization server rejects the request, the input credential is
// returned unchanged and the caller proceeds with it.
func (*OAuth2Refresher) Refresh(ctx context.Context, cred *auth.Credential, scheme *auth.Scheme) (*Result, error) {
	passthrough := &Result{Credential: cred, Refreshed: false}
	if cred == nil || cred.OAuth2 == nil {
		return passthrough, nil
	}

	o := cred.OAuth2
	tokenURL := scheme.TokenEndpoint()
	if o.RefreshToken == "" || tokenURL == "" {
		logger.Debugf("credential for client %q is not refreshable, keeping expired token", o.ClientID)
		return passthrough, nil
	}

	conf := &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: authStyle(o.TokenEndpointAuthMethod),
		},
	}

	// Seeding the source with an already-expired token forces an
	// immediate refresh_token grant on the first Token call.
	seed := &oauth2.Token{
		AccessToken:  o.AccessToken,
		RefreshToken: o.RefreshToken,
		Expiry:       time.Unix(0, 1),
	}
	token, err := conf.TokenSource(ctx, seed).Token()
	if err != nil {
		logger.Warnf("token refresh failed for client %q: %v", o.ClientID, err)
		return passthrough, nil
	}

	out := cred.Clone()
	out.OAuth2.ApplyToken(token.AccessToken, token.RefreshToken, token.Expiry)
	return &Result{Credential: out, Refreshed: true}, nil
}

func authStyle(method string) oauth2.AuthStyle {
	switch method {
	case "client_secret_basic":
		return oauth2.AuthStyleInHeader
	case "client_secret_post":
		return oauth2.AuthStyleInParams
	default:
		return oauth2.AuthStyleAutoDetect
	}
}
