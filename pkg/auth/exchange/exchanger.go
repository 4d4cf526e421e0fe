// Package exchange converts raw credentials into usable ones.
//
// Each credential kind has an Exchanger; the Registry dispatches to the
// right one. Registration is open so hosts can inject provider-specific
// exchangers, but must happen before first use.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/loopwork/agentry/pkg/auth"
)

// Result is the outcome of an exchange attempt.
type Result struct {
	// Credential is the usable credential: the exchanged one on success,
	// or the input credential when no exchange was needed or the attempt
	// soft-failed.
	Credential *auth.Credential
	// Exchanged reports whether an exchange actually happened.
	Exchanged bool
}

// Exchanger converts a raw credential into a usable credential for one
// credential kind.
//
// Implementations must be thread-safe; a registry serves concurrent tool
// invocations. Exchange failures that a later retry can repair are soft:
// implementations log them and return the input credential with
// Exchanged=false rather than an error.
type Exchanger interface {
	Exchange(ctx context.Context, cred *auth.Credential, scheme *auth.Scheme) (*Result, error)
}

// Registry maps credential kinds to their Exchanger.
//
// Thread-safety: safe for concurrent Register and Get. It uses a
// sync.RWMutex as tool invocations are inherently concurrent.
type Registry struct {
	mu         sync.RWMutex
	exchangers map[auth.CredentialType]Exchanger
}

// NewRegistry returns an empty Registry. Exchangers must be registered
// before they can be used.
func NewRegistry() *Registry {
	return &Registry{exchangers: make(map[auth.CredentialType]Exchanger)}
}

// NewDefaultRegistry returns a Registry pre-populated with the built-in
// exchangers for every credential kind.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	noop := &NoopExchanger{}
	oauth := &OAuth2Exchanger{}
	// Registration of built-ins cannot fail: kinds are distinct and
	// non-empty.
	_ = r.Register(auth.CredentialTypeAPIKey, noop)
	_ = r.Register(auth.CredentialTypeHTTP, noop)
	_ = r.Register(auth.CredentialTypeOAuth2, oauth)
	_ = r.Register(auth.CredentialTypeOpenIDConnect, oauth)
	_ = r.Register(auth.CredentialTypeServiceAccount, &ServiceAccountExchanger{})
	return r
}

// Register adds an exchanger for a credential kind. It returns an error if
// the kind is empty, the exchanger is nil, or the kind is already
// registered.
func (r *Registry) Register(kind auth.CredentialType, ex Exchanger) error {
	if kind == "" {
		return errors.New("credential kind cannot be empty")
	}
	if ex == nil {
		return errors.New("exchanger cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.exchangers[kind]; exists {
		return fmt.Errorf("exchanger for %q is already registered", kind)
	}
	r.exchangers[kind] = ex
	return nil
}

// Get retrieves the exchanger for a credential kind.
func (r *Registry) Get(kind auth.CredentialType) (Exchanger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ex, exists := r.exchangers[kind]
	if !exists {
		return nil, fmt.Errorf("no exchanger registered for credential kind %q", kind)
	}
	return ex, nil
}

// Exchange dispatches to the exchanger registered for the credential's
// kind.
func (r *Registry) Exchange(ctx context.Context, cred *auth.Credential, scheme *auth.Scheme) (*Result, error) {
	ex, err := r.Get(cred.Type)
	if err != nil {
		return nil, err
	}
	return ex.Exchange(ctx, cred, scheme)
}

// NoopExchanger serves credential kinds that are usable as configured
// (API keys, HTTP basic/bearer material).
type NoopExchanger struct{}

// Exchange returns the credential unchanged.
func (*NoopExchanger) Exchange(_ context.Context, cred *auth.Credential, _ *auth.Scheme) (*Result, error) {
	return &Result{Credential: cred, Exchanged: false}, nil
}
