// Package handler turns auth configs into concrete request parameters,
// suspending tool execution when user authorization is required.
//
// The handler sits between a tool and the credential manager. When the
// manager reports that no credential can exist yet, the handler prepares
// an authorization request (synthesizing the OAuth authorization URI),
// registers it on the invocation, and reports Pending; the host surfaces
// the request, collects the user's callback, and re-runs the tool.
package handler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/loopwork/agentry/pkg/auth"
	"github.com/loopwork/agentry/pkg/auth/manager"
	"github.com/loopwork/agentry/pkg/logger"
)

// State is a phase of the authentication flow. States are reported on
// results and in logs; hosts can use them to explain what a pending or
// failed flow was doing.
type State string

const (
	StateIdle         State = "idle"
	StateValidating   State = "validating"
	StateDiscovering  State = "discovering"
	StateAwaitingUser State = "awaiting_user"
	StateExchanging   State = "exchanging"
	StateRefreshing   State = "refreshing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Status is the outcome of one Authenticate call.
type Status string

const (
	// StatusDone means a usable credential exists and Params carry it.
	StatusDone Status = "done"
	// StatusPending means user authorization is required; a credential
	// request has been registered on the invocation.
	StatusPending Status = "pending"
	// StatusFailed means the flow failed fatally.
	StatusFailed Status = "failed"
)

// Result is the outcome of an authentication attempt.
type Result struct {
	Status Status
	// State is the phase the flow ended in: done, awaiting_user, or failed.
	State State
	// Credential is the finalized credential when Status is done.
	Credential *auth.Credential
	// Params are the request parameters to attach when Status is done.
	Params []auth.Param
	// Err carries the failure when Status is failed.
	Err error
}

// Handler authenticates tool calls through the credential manager.
type Handler struct {
	manager *manager.CredentialManager
}

// New returns a Handler over the given credential manager.
func New(m *manager.CredentialManager) *Handler {
	return &Handler{manager: m}
}

// Authenticate resolves the config to request parameters.
//
// A nil config means the tool needs no authentication and yields an empty
// done result. Fatal pipeline errors come back as a failed result, not an
// error return; the error return is reserved for programming errors such
// as an unusable scheme/parameter combination.
func (h *Handler) Authenticate(ctx context.Context, cfg *auth.Config, tc auth.Context) (*Result, error) {
	if cfg == nil {
		return &Result{Status: StatusDone, State: StateDone}, nil
	}

	state := transition(StateIdle, StateValidating, cfg)

	cred, err := h.manager.Get(ctx, cfg, tc)
	if err != nil {
		transition(state, StateFailed, cfg)
		return &Result{Status: StatusFailed, State: StateFailed, Err: err}, nil
	}

	if cred == nil {
		state = transition(state, StateAwaitingUser, cfg)
		if err := h.requestAuthorization(cfg, tc); err != nil {
			transition(state, StateFailed, cfg)
			return &Result{Status: StatusFailed, State: StateFailed, Err: err}, nil
		}
		return &Result{Status: StatusPending, State: StateAwaitingUser}, nil
	}

	params, err := Params(cfg.Scheme, cred)
	if err != nil {
		transition(state, StateFailed, cfg)
		return nil, err
	}
	transition(state, StateDone, cfg)
	return &Result{
		Status:     StatusDone,
		State:      StateDone,
		Credential: cred,
		Params:     params,
	}, nil
}

// requestAuthorization prepares and registers a consent request: a clone
// of the raw credential annotated with the authorization URI and a fresh
// state value, placed on cfg.Exchanged for the host to surface.
func (h *Handler) requestAuthorization(cfg *auth.Config, tc auth.Context) error {
	pending := cfg.Raw.Clone()
	if pending == nil || pending.OAuth2 == nil {
		return fmt.Errorf("%w: cannot request user authorization without an oauth2 credential",
			auth.ErrCredentialMissing)
	}

	if canSynthesizeAuthURI(pending) {
		authURI, state, err := authorizationURI(cfg.Scheme, pending.OAuth2)
		if err != nil {
			return err
		}
		pending.OAuth2.AuthURI = authURI
		pending.OAuth2.State = state
	}

	cfg.Exchanged = pending
	tc.RequestCredential(cfg)
	return nil
}

// canSynthesizeAuthURI reports whether the pipeline can build an
// authorization URI itself. Without full client material the token is
// expected to arrive from outside: the consent request is registered
// as-is and the host or user performs the exchange.
func canSynthesizeAuthURI(cred *auth.Credential) bool {
	o := cred.OAuth2
	return o.ClientID != "" && o.ClientSecret != ""
}

// authorizationURI builds the URL the user must visit, plus the CSRF
// state bound to it.
func authorizationURI(scheme *auth.Scheme, o *auth.OAuth2Credential) (string, string, error) {
	authURL := scheme.AuthorizationEndpoint()
	if authURL == "" {
		return "", "", fmt.Errorf("%w: scheme has no authorization endpoint",
			auth.ErrEndpointResolutionFailed)
	}

	scopes := o.Scopes
	if len(scopes) == 0 {
		scopes = scheme.ScopeNames()
	}

	conf := &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  o.RedirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: scheme.TokenEndpoint(),
		},
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	}
	if o.Audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", o.Audience))
	}

	state := uuid.NewString()
	return conf.AuthCodeURL(state, opts...), state, nil
}

func transition(from, to State, cfg *auth.Config) State {
	logger.Debugf("auth flow %s -> %s (key %s)", from, to, cfg.CredentialKey())
	return to
}

// Params converts a finalized credential into the request parameters a
// tool attaches to its outbound call.
//
// API keys go to the scheme's declared location. Bearer tokens, including
// exchanged OAuth2/OIDC access tokens, become an Authorization header.
// Basic authentication is not supported for tool calls.
func Params(scheme *auth.Scheme, cred *auth.Credential) ([]auth.Param, error) {
	if scheme == nil || cred == nil {
		return nil, nil
	}

	switch scheme.Type {
	case auth.SchemeTypeAPIKey:
		if cred.Type != auth.CredentialTypeAPIKey || cred.APIKey == "" {
			return nil, fmt.Errorf("%w: apiKey scheme needs an apiKey credential",
				auth.ErrInvalidCredentialShape)
		}
		return []auth.Param{{
			In:    scheme.APIKey.In,
			Name:  scheme.APIKey.Name,
			Value: cred.APIKey,
		}}, nil

	case auth.SchemeTypeHTTP:
		if scheme.HTTP.Scheme == auth.HTTPSchemeBasic {
			return nil, auth.ErrBasicAuthNotSupported
		}
		token := cred.BearerToken()
		if token == "" {
			return nil, fmt.Errorf("%w: bearer scheme needs a token", auth.ErrCredentialMissing)
		}
		return []auth.Param{bearerParam(token)}, nil

	case auth.SchemeTypeOAuth2, auth.SchemeTypeOpenIDConnect, auth.SchemeTypeOpenIDConnectDiscoverable:
		token := cred.BearerToken()
		if token == "" {
			return nil, fmt.Errorf("%w: credential has no access token", auth.ErrCredentialMissing)
		}
		return []auth.Param{bearerParam(token)}, nil

	default:
		return nil, fmt.Errorf("unknown auth scheme type %q", scheme.Type)
	}
}

func bearerParam(token string) auth.Param {
	return auth.Param{
		In:    auth.APIKeyInHeader,
		Name:  "Authorization",
		Value: "Bearer " + token,
	}
}
