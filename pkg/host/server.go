// Package host exposes agents over HTTP: a streaming run endpoint and the
// OAuth callback route that resumes suspended runs.
//
// Sessions are held in memory. A run that suspends for user authorization
// keeps its invocation alive under its ID; the client repeats the run
// request with that ID after the callback fires.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/loopwork/agentry/pkg/agent"
	"github.com/loopwork/agentry/pkg/logger"
)

// Server routes agent runs and OAuth callbacks.
type Server struct {
	addr   string
	agents map[string]*agent.Agent

	mu       sync.Mutex
	sessions map[string]*agent.Invocation
	// callback state value -> the suspended request it resumes
	pending map[string]pendingRef
}

type pendingRef struct {
	invocationID string
	requestID    string
}

// NewServer returns a Server hosting the given agents at addr.
func NewServer(addr string, agents ...*agent.Agent) *Server {
	byName := make(map[string]*agent.Agent, len(agents))
	for _, a := range agents {
		byName[a.Name()] = a
	}
	return &Server{
		addr:     addr,
		agents:   byName,
		sessions: map[string]*agent.Invocation{},
		pending:  map[string]pendingRef{},
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/agents/{name}/run", s.handleRun)
	r.Get("/oauth/callback", s.handleCallback)
	return r
}

// ListenAndServe serves until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Infof("host listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// runRequest is the body of POST /agents/{name}/run.
type runRequest struct {
	// InvocationID resumes a suspended run; empty starts a fresh one.
	InvocationID string           `json:"invocation_id,omitempty"`
	Calls        []agent.ToolCall `json:"calls"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	a, ok := s.agents[chi.URLParam(r, "name")]
	if !ok {
		http.Error(w, "unknown agent", http.StatusNotFound)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid run request: %v", err), http.StatusBadRequest)
		return
	}

	inv := s.invocation(req.InvocationID)

	stream, err := newEventStream(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stream.send(agent.Event{Type: "session", Data: map[string]string{"invocation_id": inv.ID()}})

	err = a.Run(r.Context(), inv, req.Calls, func(e agent.Event) {
		if e.Type == agent.EventAuthRequired {
			s.trackPending(inv)
		}
		stream.send(e)
	})
	if err != nil {
		logger.Errorf("run failed for agent %q: %v", a.Name(), err)
		stream.send(agent.Event{Type: "error", Data: err.Error()})
	}
}

// invocation returns the session for id, creating a fresh one when id is
// empty or unknown.
func (s *Server) invocation(id string) *agent.Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if inv, ok := s.sessions[id]; ok {
			return inv
		}
	}
	inv := agent.NewInvocation()
	s.sessions[inv.ID()] = inv
	return inv
}

// trackPending indexes the invocation's open consent requests by their
// OAuth state value so the callback can find them.
func (s *Server) trackPending(inv *agent.Invocation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, req := range inv.PendingRequests() {
		cred := req.Config.Exchanged
		if cred == nil || cred.OAuth2 == nil || cred.OAuth2.State == "" {
			continue
		}
		s.pending[cred.OAuth2.State] = pendingRef{
			invocationID: inv.ID(),
			requestID:    req.ID,
		}
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		http.Error(w, "missing state parameter", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	ref, ok := s.pending[state]
	if ok {
		delete(s.pending, state)
	}
	inv := s.sessions[ref.invocationID]
	s.mu.Unlock()

	if !ok || inv == nil {
		http.Error(w, "unknown or expired authorization state", http.StatusNotFound)
		return
	}

	responseURI := callbackURI(r)
	if err := inv.SupplyCallbackURI(ref.requestID, responseURI); err != nil {
		logger.Errorf("resuming authorization failed: %v", err)
		http.Error(w, "could not resume authorization", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><p>Authorization received. You can close this window.</p></body></html>")
}

// callbackURI reconstructs the full redirect URI the authorization server
// sent the user to.
func callbackURI(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.RequestURI
}
