// Package manager drives the credential pipeline: validation, endpoint
// discovery, cache lookup, token exchange, and refresh, in that order.
//
// The manager owns every freshness decision. Hosts hand it an auth config
// and an invocation context and get back a usable credential, or nil when
// the pipeline must wait for user authorization.
package manager

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/loopwork/agentry/pkg/auth"
	"github.com/loopwork/agentry/pkg/auth/discovery"
	"github.com/loopwork/agentry/pkg/auth/exchange"
	"github.com/loopwork/agentry/pkg/auth/refresh"
	"github.com/loopwork/agentry/pkg/logger"
)

// MetadataResolver resolves OAuth authorization server metadata for an
// issuer. Satisfied by discovery.Resolver.
type MetadataResolver interface {
	Resolve(ctx context.Context, issuer string) (*discovery.Metadata, error)
}

// CredentialManager turns auth configs into usable credentials.
//
// Thread-safety: safe for concurrent use. Concurrent calls for the same
// credential fingerprint are collapsed into a single pipeline run.
type CredentialManager struct {
	exchangers *exchange.Registry
	refreshers *refresh.Registry
	resolver   MetadataResolver
	group      singleflight.Group
}

// Option configures a CredentialManager.
type Option func(*CredentialManager)

// WithExchangers replaces the default exchanger registry.
func WithExchangers(r *exchange.Registry) Option {
	return func(m *CredentialManager) { m.exchangers = r }
}

// WithRefreshers replaces the default refresher registry.
func WithRefreshers(r *refresh.Registry) Option {
	return func(m *CredentialManager) { m.refreshers = r }
}

// WithResolver replaces the default metadata resolver.
func WithResolver(r MetadataResolver) Option {
	return func(m *CredentialManager) { m.resolver = r }
}

// New returns a CredentialManager with the default registries and a
// discovery resolver.
func New(opts ...Option) *CredentialManager {
	m := &CredentialManager{
		exchangers: exchange.NewDefaultRegistry(),
		refreshers: refresh.NewDefaultRegistry(),
		resolver:   discovery.NewResolver(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get runs the credential pipeline for the config and returns the
// credential to use.
//
// The outcomes are:
//   - a ready credential (API key, HTTP) is returned as-is and nothing
//     else runs;
//   - a cached, callback-supplied, or exchangeable credential is
//     processed and returned, with cfg.Exchanged set to the result;
//   - (nil, nil) means user authorization is required before a credential
//     can exist. The caller surfaces a consent request and retries after
//     the user responds.
//
// Exchange and refresh failures are soft and produce the best credential
// available; validation and discovery failures are fatal.
//
// Concurrent calls with the same credential fingerprint share a single
// pipeline run executed under the first caller's context; cancelling a
// duplicate caller's context does not stop the shared run.
func (m *CredentialManager) Get(ctx context.Context, cfg *auth.Config, tc auth.Context) (*auth.Credential, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth config is required")
	}

	// Fingerprint before discovery so the key reflects the configured
	// scheme, not the endpoints discovery fills in.
	key := cfg.CredentialKey()

	if err := m.discover(ctx, cfg); err != nil {
		return nil, err
	}
	if err := auth.Validate(cfg.Scheme, cfg.Raw); err != nil {
		return nil, err
	}

	// Ready credentials bypass the pipeline entirely.
	if cfg.Raw != nil && cfg.Raw.Ready() {
		return cfg.Raw, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		return m.process(ctx, cfg, tc)
	})
	if err != nil {
		return nil, err
	}
	cred, _ := v.(*auth.Credential)
	return cred, nil
}

// discover fills in missing OAuth endpoints from the issuer's discovery
// document. The configured scheme is replaced with a populated clone;
// schemes with endpoints already present are left alone.
func (m *CredentialManager) discover(ctx context.Context, cfg *auth.Config) error {
	scheme := cfg.Scheme
	if scheme == nil || !scheme.NeedsDiscovery() {
		return nil
	}
	if scheme.OpenIDConnect == nil || scheme.OpenIDConnect.IssuerURL == "" {
		return fmt.Errorf("%w: scheme type %s has no issuer to discover from",
			auth.ErrEndpointResolutionFailed, scheme.Type)
	}

	issuer := scheme.OpenIDConnect.IssuerURL
	md, err := m.resolver.Resolve(ctx, issuer)
	if err != nil {
		return fmt.Errorf("%w: discovery against %s: %w",
			auth.ErrEndpointResolutionFailed, issuer, err)
	}
	cfg.Scheme = discovery.PopulateScheme(scheme, md)
	logger.Debugf("discovered endpoints for issuer %s", issuer)
	return nil
}

// process is the single-flighted portion of the pipeline: cache lookup,
// callback pickup, exchange, refresh, and persistence.
func (m *CredentialManager) process(ctx context.Context, cfg *auth.Config, tc auth.Context) (*auth.Credential, error) {
	scheme := cfg.Scheme

	cred := tc.LoadCredential(cfg)
	fromAuthResponse := false
	if cred == nil {
		if cred = tc.AuthResponse(cfg); cred != nil {
			fromAuthResponse = true
		}
	}

	// A credential with no token and no authorization code cannot make
	// progress without another consent round trip. Denied callbacks
	// (error=access_denied, no code) land here; so do stale cached copies
	// of them. Treat them as absent so the flow suspends again.
	if cred != nil && awaitingAuthorization(cred, scheme) {
		logger.Debugf("credential for %s awaits user authorization, suspending", cfg.CredentialKey())
		cred = nil
		fromAuthResponse = false
	}

	if cred == nil && selfSufficient(cfg.Raw, scheme) {
		cred = cfg.Raw.Clone()
	}

	// Nothing to work with: user authorization must happen first.
	if cred == nil {
		return nil, nil
	}

	exRes, err := m.exchangers.Exchange(ctx, cred, scheme)
	if err != nil {
		return nil, err
	}
	cred = exRes.Credential

	refreshed := false
	// A freshly exchanged token cannot be stale.
	if !exRes.Exchanged && m.refreshers.NeedsRefresh(cred, scheme) {
		rfRes, err := m.refreshers.Refresh(ctx, cred, scheme)
		if err != nil {
			return nil, err
		}
		cred = rfRes.Credential
		refreshed = rfRes.Refreshed
	}

	cfg.Exchanged = cred
	// Never persist a tokenless callback credential: reloading it would
	// block the next consent request.
	if exRes.Exchanged || refreshed || (fromAuthResponse && cred.BearerToken() != "") {
		tc.SaveCredential(cfg)
	}
	return cred, nil
}

// awaitingAuthorization reports whether the credential is an OAuth2
// payload that carries neither a token nor an authorization code, so the
// only way forward is a user consent round trip. Client-credentials
// schemes never wait on the user.
func awaitingAuthorization(cred *auth.Credential, scheme *auth.Scheme) bool {
	if scheme.SupportsClientCredentials() {
		return false
	}
	o := cred.OAuth2
	return o != nil && o.AccessToken == "" && o.AuthorizationCode() == ""
}

// selfSufficient reports whether the configured raw credential can be
// processed without user interaction: client-credentials and
// service-account material always can, and so can an OAuth2 payload that
// already carries a token or an authorization code.
func selfSufficient(raw *auth.Credential, scheme *auth.Scheme) bool {
	if raw == nil {
		return false
	}
	if scheme.SupportsClientCredentials() || raw.Type == auth.CredentialTypeServiceAccount {
		return true
	}
	o := raw.OAuth2
	return o != nil && (o.AccessToken != "" || o.AuthorizationCode() != "")
}
