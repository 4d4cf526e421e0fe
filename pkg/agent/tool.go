package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/loopwork/agentry/pkg/auth"
	"github.com/loopwork/agentry/pkg/auth/handler"
	"github.com/loopwork/agentry/pkg/logger"
	"github.com/loopwork/agentry/pkg/networking"
)

// maxToolResponseSize caps how much of a tool's HTTP response is read.
const maxToolResponseSize = 4 << 20

// Outcome is the result of one tool call.
type Outcome struct {
	// Status mirrors the auth handler's outcome: done, pending, or failed.
	Status handler.Status `json:"status"`
	// Output is the tool's result when Status is done. JSON responses are
	// decoded; everything else is a string.
	Output any `json:"output,omitempty"`
	// Requests are the open consent requests when Status is pending.
	Requests []*CredentialRequest `json:"requests,omitempty"`
}

// Tool is an executable capability of an agent.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, inv *Invocation, args map[string]any) (*Outcome, error)
}

// HTTPTool calls an external HTTP endpoint, authenticating through the
// auth handler. GET requests encode arguments as query parameters; other
// methods send a JSON body.
type HTTPTool struct {
	name        string
	description string
	method      string
	endpoint    string

	authConfig  *auth.Config
	authHandler *handler.Handler
	client      networking.HTTPClient
}

// HTTPToolOption configures an HTTPTool.
type HTTPToolOption func(*HTTPTool)

// WithAuth attaches an auth config and the handler that resolves it.
func WithAuth(cfg *auth.Config, h *handler.Handler) HTTPToolOption {
	return func(t *HTTPTool) {
		t.authConfig = cfg
		t.authHandler = h
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c networking.HTTPClient) HTTPToolOption {
	return func(t *HTTPTool) { t.client = c }
}

// NewHTTPTool returns a tool that performs method requests against
// endpoint.
func NewHTTPTool(name, description, method, endpoint string, opts ...HTTPToolOption) (*HTTPTool, error) {
	if !networking.IsURL(endpoint) {
		return nil, fmt.Errorf("tool %q: invalid endpoint %q", name, endpoint)
	}
	t := &HTTPTool{
		name:        name,
		description: description,
		method:      strings.ToUpper(method),
		endpoint:    endpoint,
		client:      networking.NewHTTPClient(networking.HttpTimeout),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *HTTPTool) Name() string        { return t.name }
func (t *HTTPTool) Description() string { return t.description }

// Call authenticates, performs the HTTP request, and returns the decoded
// response. When authentication is pending the request is not sent; the
// outcome carries the invocation's open consent requests instead.
func (t *HTTPTool) Call(ctx context.Context, inv *Invocation, args map[string]any) (*Outcome, error) {
	var params []auth.Param
	if t.authConfig != nil {
		res, err := t.authHandler.Authenticate(ctx, t.authConfig.Clone(), inv)
		if err != nil {
			return nil, err
		}
		switch res.Status {
		case handler.StatusFailed:
			return nil, fmt.Errorf("tool %q: authentication failed: %w", t.name, res.Err)
		case handler.StatusPending:
			logger.Infof("tool %q suspended awaiting user authorization", t.name)
			return &Outcome{Status: handler.StatusPending, Requests: inv.PendingRequests()}, nil
		}
		params = res.Params
	}

	req, err := t.buildRequest(ctx, args)
	if err != nil {
		return nil, err
	}
	applyParams(req, params)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tool %q: request failed: %w", t.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxToolResponseSize))
	if err != nil {
		return nil, fmt.Errorf("tool %q: reading response: %w", t.name, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("tool %q: endpoint returned %d: %s", t.name, resp.StatusCode, body)
	}

	return &Outcome{Status: handler.StatusDone, Output: decodeBody(resp, body)}, nil
}

func (t *HTTPTool) buildRequest(ctx context.Context, args map[string]any) (*http.Request, error) {
	if t.method == http.MethodGet || t.method == http.MethodHead || len(args) == 0 {
		req, err := http.NewRequestWithContext(ctx, t.method, t.endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", t.name, err)
		}
		q := req.URL.Query()
		for k, v := range args {
			q.Set(k, fmt.Sprint(v))
		}
		req.URL.RawQuery = q.Encode()
		return req, nil
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("tool %q: encoding arguments: %w", t.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, t.method, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", t.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// applyParams attaches finalized credential parameters to the request.
func applyParams(req *http.Request, params []auth.Param) {
	for _, p := range params {
		switch p.In {
		case auth.APIKeyInHeader:
			req.Header.Set(p.Name, p.Value)
		case auth.APIKeyInQuery:
			q := req.URL.Query()
			q.Set(p.Name, p.Value)
			req.URL.RawQuery = q.Encode()
		case auth.APIKeyInCookie:
			req.AddCookie(&http.Cookie{Name: p.Name, Value: p.Value})
		}
	}
}

func decodeBody(resp *http.Response, body []byte) any {
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var out any
		if err := json.Unmarshal(body, &out); err == nil {
			return out
		}
	}
	return string(body)
}
