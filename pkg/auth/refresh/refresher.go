// Package refresh detects and repairs expiry of exchanged credentials.
//
// It mirrors the exchange package: a Refresher per credential kind behind
// an open Registry. Kinds without a registered refresher never need
// refreshing.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/loopwork/agentry/pkg/auth"
)

// Result is the outcome of a refresh attempt.
type Result struct {
	// Credential is the refreshed credential on success, or the input
	// credential when the attempt soft-failed.
	Credential *auth.Credential
	// Refreshed reports whether a refresh actually happened.
	Refreshed bool
}

// Refresher decides whether a credential is expired and repairs it.
//
// Implementations must be thread-safe. Refresh failures are soft:
// implementations log them and return the input credential with
// Refreshed=false; a later retry re-enters the full pipeline.
type Refresher interface {
	NeedsRefresh(cred *auth.Credential, scheme *auth.Scheme) bool
	Refresh(ctx context.Context, cred *auth.Credential, scheme *auth.Scheme) (*Result, error)
}

// Registry maps credential kinds to their Refresher.
//
// Thread-safety: safe for concurrent Register and Get; registration must
// still happen before first use.
type Registry struct {
	mu         sync.RWMutex
	refreshers map[auth.CredentialType]Refresher
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{refreshers: make(map[auth.CredentialType]Refresher)}
}

// NewDefaultRegistry returns a Registry with the built-in OAuth2/OIDC
// refresher. Other kinds carry no expiry and need none.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	oauth := &OAuth2Refresher{}
	_ = r.Register(auth.CredentialTypeOAuth2, oauth)
	_ = r.Register(auth.CredentialTypeOpenIDConnect, oauth)
	return r
}

// Register adds a refresher for a credential kind.
func (r *Registry) Register(kind auth.CredentialType, rf Refresher) error {
	if kind == "" {
		return errors.New("credential kind cannot be empty")
	}
	if rf == nil {
		return errors.New("refresher cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.refreshers[kind]; exists {
		return fmt.Errorf("refresher for %q is already registered", kind)
	}
	r.refreshers[kind] = rf
	return nil
}

// Get retrieves the refresher for a credential kind, or nil when the kind
// has none.
func (r *Registry) Get(kind auth.CredentialType) Refresher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshers[kind]
}

// NeedsRefresh reports whether the credential's kind has a refresher that
// considers it expired.
func (r *Registry) NeedsRefresh(cred *auth.Credential, scheme *auth.Scheme) bool {
	rf := r.Get(cred.Type)
	return rf != nil && rf.NeedsRefresh(cred, scheme)
}

// Refresh dispatches to the refresher for the credential's kind. Kinds
// without one pass through unchanged.
func (r *Registry) Refresh(ctx context.Context, cred *auth.Credential, scheme *auth.Scheme) (*Result, error) {
	rf := r.Get(cred.Type)
	if rf == nil {
		return &Result{Credential: cred, Refreshed: false}, nil
	}
	return rf.Refresh(ctx, cred, scheme)
}
