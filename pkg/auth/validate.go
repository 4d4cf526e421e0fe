package auth

import "fmt"

// Validate checks that a scheme and its raw credential are coherent and
// usable. For OAuth2/OIDC schemes a credential with an oauth2 block is
// mandatory, and at least one flow must carry its endpoints — unless the
// scheme is discoverable, in which case the caller is expected to run
// discovery first (see Scheme.NeedsDiscovery).
func Validate(scheme *Scheme, raw *Credential) error {
	if scheme == nil {
		return fmt.Errorf("auth scheme is required")
	}

	switch scheme.Type {
	case SchemeTypeAPIKey:
		if scheme.APIKey == nil || scheme.APIKey.Name == "" {
			return fmt.Errorf("%w: apiKey scheme missing parameter name", ErrInvalidCredentialShape)
		}
		return nil
	case SchemeTypeHTTP:
		if scheme.HTTP == nil || scheme.HTTP.Scheme == "" {
			return fmt.Errorf("%w: http scheme missing authorization scheme", ErrInvalidCredentialShape)
		}
		return nil
	case SchemeTypeOAuth2, SchemeTypeOpenIDConnect, SchemeTypeOpenIDConnectDiscoverable:
		return validateOAuth(scheme, raw)
	default:
		return fmt.Errorf("unknown auth scheme type %q", scheme.Type)
	}
}

func validateOAuth(scheme *Scheme, raw *Credential) error {
	if raw == nil {
		return fmt.Errorf("%w: scheme type %s", ErrSchemeRequiresCredential, scheme.Type)
	}
	// Service-account credentials satisfy OAuth schemes without an oauth2
	// block; their token material comes from the platform.
	if raw.Type == CredentialTypeServiceAccount {
		if raw.ServiceAccount == nil {
			return fmt.Errorf("%w: serviceAccount credential missing payload", ErrInvalidCredentialShape)
		}
		return nil
	}
	if raw.OAuth2 == nil {
		return fmt.Errorf("%w: scheme type %s needs an oauth2 credential", ErrInvalidCredentialShape, scheme.Type)
	}
	if scheme.TokenEndpoint() == "" && scheme.AuthorizationEndpoint() == "" {
		return fmt.Errorf("%w: scheme type %s has no authorization or token URL", ErrEndpointResolutionFailed, scheme.Type)
	}
	return nil
}
