package host

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopwork/agentry/pkg/agent"
	"github.com/loopwork/agentry/pkg/auth"
	"github.com/loopwork/agentry/pkg/auth/handler"
	"github.com/loopwork/agentry/pkg/auth/manager"
)

type sseEvent struct {
	name string
	data map[string]any
	raw  json.RawMessage
}

// parseSSE splits a finished event-stream body into events.
func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		var e sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				e.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				payload := []byte(strings.TrimPrefix(line, "data: "))
				var wrapper struct {
					Data json.RawMessage `json:"data"`
				}
				require.NoError(t, json.Unmarshal(payload, &wrapper))
				e.raw = wrapper.Data
				var asMap map[string]any
				if json.Unmarshal(wrapper.Data, &asMap) == nil {
					e.data = asMap
				}
			}
		}
		if e.name != "" {
			events = append(events, e)
		}
	}
	return events
}

func runBody(t *testing.T, invocationID string, calls ...agent.ToolCall) io.Reader {
	t.Helper()
	data, err := json.Marshal(runRequest{InvocationID: invocationID, Calls: calls})
	require.NoError(t, err)
	return strings.NewReader(string(data))
}

func TestServerHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer("", agent.New("a")).Router())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestServerUnknownAgent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer("", agent.New("a")).Router())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/agents/nope/run", "application/json", runBody(t, ""))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerCallbackValidation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer("", agent.New("a")).Router())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/oauth/callback")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/oauth/callback?state=unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerRunStreamsEvents(t *testing.T) {
	t.Parallel()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"answer":42}`)
	}))
	t.Cleanup(api.Close)

	tool, err := agent.NewHTTPTool("answer", "", http.MethodGet, api.URL)
	require.NoError(t, err)
	a := agent.New("assistant")
	require.NoError(t, a.AddTool(tool))

	srv := httptest.NewServer(NewServer("", a).Router())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/agents/assistant/run", "application/json",
		runBody(t, "", agent.ToolCall{Tool: "answer"}))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	events := parseSSE(t, string(body))
	require.Len(t, events, 3)
	assert.Equal(t, "session", events[0].name)
	assert.NotEmpty(t, events[0].data["invocation_id"])
	assert.Equal(t, "tool_result", events[1].name)
	assert.Equal(t, map[string]any{"answer": float64(42)}, events[1].data)
	assert.Equal(t, "run_complete", events[2].name)
}

func TestServerSuspendCallbackResume(t *testing.T) {
	t.Parallel()

	issuer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "resume-code", r.PostFormValue("code"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"issued-token","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(issuer.Close)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer issued-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	t.Cleanup(api.Close)

	cfg := &auth.Config{
		Scheme: &auth.Scheme{
			Type: auth.SchemeTypeOAuth2,
			OAuth2: &auth.OAuth2Scheme{
				Flows: auth.OAuthFlows{
					AuthorizationCode: &auth.OAuthFlow{
						AuthorizationURL: "https://issuer.example/authorize",
						TokenURL:         issuer.URL,
					},
				},
			},
		},
		Raw: &auth.Credential{
			Type: auth.CredentialTypeOAuth2,
			OAuth2: &auth.OAuth2Credential{
				ClientID:     "client",
				ClientSecret: "secret",
				RedirectURI:  "http://localhost:8080/oauth/callback",
			},
		},
	}

	tool, err := agent.NewHTTPTool("guarded", "", http.MethodGet, api.URL,
		agent.WithAuth(cfg, handler.New(manager.New())))
	require.NoError(t, err)
	a := agent.New("assistant")
	require.NoError(t, a.AddTool(tool))

	srv := httptest.NewServer(NewServer("", a).Router())
	t.Cleanup(srv.Close)

	// First run suspends.
	resp, err := http.Post(srv.URL+"/agents/assistant/run", "application/json",
		runBody(t, "", agent.ToolCall{Tool: "guarded"}))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	events := parseSSE(t, string(body))
	require.Len(t, events, 2)
	invocationID := events[0].data["invocation_id"].(string)

	require.Equal(t, "auth_required", events[1].name)
	var requests []*agent.CredentialRequest
	require.NoError(t, json.Unmarshal(events[1].raw, &requests))
	require.Len(t, requests, 1)

	authURI, err := url.Parse(requests[0].Config.Exchanged.OAuth2.AuthURI)
	require.NoError(t, err)
	state := authURI.Query().Get("state")
	require.NotEmpty(t, state)

	// The user authorizes; the provider redirects to the callback.
	resp, err = http.Get(srv.URL + "/oauth/callback?code=resume-code&state=" + state)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Re-running under the same invocation completes the tool.
	resp, err = http.Post(srv.URL+"/agents/assistant/run", "application/json",
		runBody(t, invocationID, agent.ToolCall{Tool: "guarded"}))
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	events = parseSSE(t, string(body))
	require.Len(t, events, 3)
	assert.Equal(t, invocationID, events[0].data["invocation_id"])
	assert.Equal(t, "tool_result", events[1].name)
	assert.Equal(t, map[string]any{"ok": true}, events[1].data)
	assert.Equal(t, "run_complete", events[2].name)
}
