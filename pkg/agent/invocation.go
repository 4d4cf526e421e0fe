// Package agent provides the minimal agent/tool model the host executes:
// invocations carrying per-run state, tools that call external HTTP
// endpoints,
// and the consent-request plumbing that suspends a run until the user
// authorizes a credential.
package agent

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/loopwork/agentry/pkg/auth"
	"github.com/loopwork/agentry/pkg/auth/store"
)

// CredentialRequest is a consent request raised during a run. The host
// surfaces it to the user; ID correlates the eventual response.
type CredentialRequest struct {
	// ID is a generated identifier for this request.
	ID string `json:"id"`
	// Config is the auth config awaiting authorization. Its Exchanged
	// credential carries the authorization URI and state when the runtime
	// could synthesize one.
	Config *auth.Config `json:"config"`
}

// Invocation is one agent run: a state map, the credential store over it,
// and any in-flight consent requests. It implements auth.Context.
//
// Thread-safety: safe for concurrent use; tools within a run may execute
// concurrently.
type Invocation struct {
	id string

	mu        sync.Mutex
	state     map[string]any
	store     *store.Store
	pending   map[string]*CredentialRequest // request ID -> request
	order     []string
	responses map[string]*auth.Credential // credential key -> response
}

// NewInvocation returns a fresh invocation with an empty state map.
func NewInvocation() *Invocation {
	return ResumeInvocation(uuid.NewString(), map[string]any{})
}

// ResumeInvocation returns an invocation over previously captured state,
// keeping its identifier. Credentials saved by an earlier run are visible
// again through the store.
func ResumeInvocation(id string, state map[string]any) *Invocation {
	if state == nil {
		state = map[string]any{}
	}
	return &Invocation{
		id:        id,
		state:     state,
		store:     store.New(state),
		pending:   map[string]*CredentialRequest{},
		responses: map[string]*auth.Credential{},
	}
}

// ID returns the invocation identifier.
func (inv *Invocation) ID() string { return inv.id }

// State returns the invocation's state map. The map is shared; callers
// coordinating concurrent tools must copy what they hand out.
func (inv *Invocation) State() map[string]any {
	return inv.state
}

// LoadCredential returns the stored credential for the config, or nil.
func (inv *Invocation) LoadCredential(cfg *auth.Config) *auth.Credential {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.store.Get(cfg)
}

// SaveCredential persists the config's exchanged credential in the run
// state.
func (inv *Invocation) SaveCredential(cfg *auth.Config) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.store.Put(cfg)
}

// RequestCredential registers a consent request for the config. Repeat
// requests for the same credential are collapsed into the existing one.
func (inv *Invocation) RequestCredential(cfg *auth.Config) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	key := cfg.CredentialKey()
	for _, req := range inv.pending {
		if req.Config.CredentialKey() == key {
			return
		}
	}
	req := &CredentialRequest{ID: uuid.NewString(), Config: cfg.Clone()}
	inv.pending[req.ID] = req
	inv.order = append(inv.order, req.ID)
}

// AuthResponse returns the user-supplied response for the config, or nil.
func (inv *Invocation) AuthResponse(cfg *auth.Config) *auth.Credential {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.responses[cfg.CredentialKey()].Clone()
}

// PendingRequests returns the open consent requests in the order they
// were raised.
func (inv *Invocation) PendingRequests() []*CredentialRequest {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	out := make([]*CredentialRequest, 0, len(inv.order))
	for _, id := range inv.order {
		if req, ok := inv.pending[id]; ok {
			out = append(out, req)
		}
	}
	return out
}

// SupplyAuthResponse resolves a pending request with the user's response
// credential. The next tool attempt picks it up through AuthResponse.
func (inv *Invocation) SupplyAuthResponse(requestID string, cred *auth.Credential) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	req, ok := inv.pending[requestID]
	if !ok {
		return fmt.Errorf("no pending credential request %q", requestID)
	}
	inv.responses[req.Config.CredentialKey()] = cred.Clone()
	delete(inv.pending, requestID)
	return nil
}

// SupplyCallbackURI resolves a pending request with the raw OAuth
// redirect URI captured by the host's callback endpoint. The pending
// credential (carrying client material and state) is cloned and annotated
// with the response URI for the exchanger to consume.
func (inv *Invocation) SupplyCallbackURI(requestID, responseURI string) error {
	inv.mu.Lock()
	req, ok := inv.pending[requestID]
	inv.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending credential request %q", requestID)
	}

	cred := req.Config.Exchanged.Clone()
	if cred == nil {
		cred = req.Config.Raw.Clone()
	}
	if cred == nil || cred.OAuth2 == nil {
		return fmt.Errorf("%w: pending request %q has no oauth2 credential to resume",
			auth.ErrCredentialMissing, requestID)
	}
	cred.OAuth2.AuthResponseURI = responseURI
	return inv.SupplyAuthResponse(requestID, cred)
}
