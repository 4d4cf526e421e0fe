package exchange

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"

	"github.com/loopwork/agentry/pkg/auth"
)

// defaultServiceAccountScope is requested when the credential declares no
// scopes of its own.
const defaultServiceAccountScope = "https://www.googleapis.com/auth/cloud-platform"

// ServiceAccountExchanger acquires an access token from the platform
// credential library — from explicit key material, or from Application
// Default Credentials when use_default_credential is set — and wraps it
// as an HTTP bearer credential.
//
// Unlike OAuth2 grant failures, service-account failures are fatal: there
// is no user interaction that could repair them on retry.
type ServiceAccountExchanger struct{}

// Exchange implements Exchanger.
func (*ServiceAccountExchanger) Exchange(ctx context.Context, cred *auth.Credential, _ *auth.Scheme) (*Result, error) {
	sa := cred.ServiceAccount
	if sa == nil {
		return nil, fmt.Errorf("%w: %s credential has no service_account payload", auth.ErrInvalidCredentialShape, cred.Type)
	}
	if !sa.UseDefaultCredential && len(sa.Key) == 0 {
		return nil, fmt.Errorf("%w: provide service_account_info or set use_default_credential", auth.ErrCredentialMissing)
	}

	scopes := sa.Scopes
	if len(scopes) == 0 {
		scopes = []string{defaultServiceAccountScope}
	}

	var (
		creds *google.Credentials
		err   error
	)
	if sa.UseDefaultCredential {
		creds, err = google.FindDefaultCredentials(ctx, scopes...)
	} else {
		creds, err = google.CredentialsFromJSON(ctx, sa.Key, scopes...)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrCredentialMissing, err)
	}

	token, err := creds.TokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: fetching service account token: %v", auth.ErrCredentialMissing, err)
	}

	return &Result{
		Credential: &auth.Credential{
			Type: auth.CredentialTypeHTTP,
			HTTP: &auth.HTTPCredential{Scheme: auth.HTTPSchemeBearer, Token: token.AccessToken},
		},
		Exchanged: true,
	}, nil
}
