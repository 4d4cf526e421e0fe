package auth

import "errors"

// Errors surfaced by the credential pipeline. Fatal errors propagate to
// the tool caller; soft failures (token exchange, token refresh) are
// logged and the pipeline continues with the best known credential, so
// they never appear here.
var (
	// ErrSchemeRequiresCredential is returned when an OAuth2/OIDC scheme is
	// configured without a raw credential.
	ErrSchemeRequiresCredential = errors.New("auth scheme requires a credential")

	// ErrInvalidCredentialShape is returned when the credential payload does
	// not match the scheme, e.g. an OAuth2 scheme without an oauth2 block.
	ErrInvalidCredentialShape = errors.New("credential does not match auth scheme")

	// ErrEndpointResolutionFailed is returned when OAuth endpoints are
	// missing and cannot be resolved through discovery.
	ErrEndpointResolutionFailed = errors.New("unable to resolve OAuth endpoints")

	// ErrCredentialMissing is returned when the material a step needs is
	// absent: a service-account payload without key material, or param
	// production against a credential that never obtained a token.
	ErrCredentialMissing = errors.New("credential material missing")

	// ErrBasicAuthNotSupported is returned when a tool's scheme asks for
	// HTTP basic authentication, which cannot be expressed as a request
	// parameter.
	ErrBasicAuthNotSupported = errors.New("HTTP basic auth is not supported for tool requests")
)
