package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/loopwork/agentry/pkg/logger"
	"github.com/loopwork/agentry/pkg/networking"
)

// Well-known path roots for authorization-server and protected-resource
// metadata.
const (
	wellKnownOAuthServer       = "/.well-known/oauth-authorization-server"
	wellKnownOpenIDConfig      = "/.well-known/openid-configuration"
	wellKnownProtectedResource = "/.well-known/oauth-protected-resource"
)

// DefaultTimeout bounds each metadata GET.
const DefaultTimeout = 5 * time.Second

// UserAgent identifies the runtime on discovery requests.
const UserAgent = "Agentry/1.0"

// maxResponseSize caps metadata response bodies to prevent DoS.
const maxResponseSize = 1024 * 1024 // 1MB

// Resolver fetches and validates authorization-server metadata from an
// issuer's well-known endpoints. The zero value is not usable; construct
// with NewResolver.
type Resolver struct {
	client            networking.HTTPClient
	insecureAllowHTTP bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient substitutes the HTTP client, for tests.
func WithHTTPClient(c networking.HTTPClient) Option {
	return func(r *Resolver) { r.client = c }
}

// WithInsecureAllowHTTP permits plain-HTTP issuers. Testing only.
func WithInsecureAllowHTTP() Option {
	return func(r *Resolver) { r.insecureAllowHTTP = true }
}

// NewResolver returns a Resolver with a per-request timeout of
// DefaultTimeout.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{client: networking.NewHTTPClient(DefaultTimeout)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches authorization-server metadata for the issuer URL. It
// tries the well-known candidates in order and returns the first document
// that parses, validates, and names the requested issuer. Per-candidate
// failures are logged and the next candidate is attempted; if every
// candidate fails, the combined error is returned.
func (r *Resolver) Resolve(ctx context.Context, issuer string) (*Metadata, error) {
	candidates, err := candidateURLs(issuer, r.insecureAllowHTTP)
	if err != nil {
		return nil, err
	}

	var errs []string
	for _, candidate := range candidates {
		md, err := r.fetch(ctx, candidate, issuer)
		if err != nil {
			logger.Debugf("Metadata discovery at %s failed: %v", candidate, err)
			errs = append(errs, fmt.Sprintf("%s: %v", candidate, err))
			continue
		}
		logger.Debugf("Resolved authorization server metadata from %s", candidate)
		return md, nil
	}
	return nil, fmt.Errorf("no authorization server metadata for %q: %s", issuer, strings.Join(errs, "; "))
}

// ResolveProtectedResource fetches RFC 9728 protected-resource metadata
// for a resource URL.
func (r *Resolver) ResolveProtectedResource(ctx context.Context, resource string) (*ResourceMetadata, error) {
	base, tenant, err := splitIssuer(resource, r.insecureAllowHTTP)
	if err != nil {
		return nil, err
	}
	u := *base
	u.Path = path.Join(wellKnownProtectedResource, tenant)

	body, err := r.get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	var md ResourceMetadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, fmt.Errorf("unexpected protected resource metadata: %w", err)
	}
	if md.Resource == "" {
		return nil, fmt.Errorf("protected resource metadata missing required 'resource' field")
	}
	return &md, nil
}

func (r *Resolver) fetch(ctx context.Context, metadataURL, issuer string) (*Metadata, error) {
	body, err := r.get(ctx, metadataURL)
	if err != nil {
		return nil, err
	}
	var md Metadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, fmt.Errorf("unexpected response: %w", err)
	}
	if err := md.Validate(issuer, r.insecureAllowHTTP); err != nil {
		if strings.Contains(err.Error(), "issuer mismatch") {
			logger.Warnf("Rejecting metadata from %s: %v", metadataURL, err)
		}
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return &md, nil
}

func (r *Resolver) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Debugf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: HTTP %d", rawURL, resp.StatusCode)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		return nil, fmt.Errorf("%s: unexpected content-type %q", rawURL, ct)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

// candidateURLs builds the metadata URLs for an issuer, in try order:
//
//  1. RFC 8414 path insertion:   /.well-known/oauth-authorization-server{path}
//  2. OIDC path insertion:       /.well-known/openid-configuration{path}
//  3. OIDC path appending:       {path}/.well-known/openid-configuration
//
// When the issuer has no path component, only the two root forms apply.
func candidateURLs(issuer string, insecureAllowHTTP bool) ([]string, error) {
	base, tenant, err := splitIssuer(issuer, insecureAllowHTTP)
	if err != nil {
		return nil, err
	}

	oauthInserted := *base
	oauthInserted.Path = path.Join(wellKnownOAuthServer, tenant)

	oidcInserted := *base
	oidcInserted.Path = path.Join(wellKnownOpenIDConfig, tenant)

	urls := []string{oauthInserted.String(), oidcInserted.String()}
	if tenant != "" {
		oidcAppended := *base
		oidcAppended.Path = path.Join("/", tenant, wellKnownOpenIDConfig)
		urls = append(urls, oidcAppended.String())
	}
	return urls, nil
}

// splitIssuer parses an issuer URL into its scheme+host base and its
// tenant path (trimmed of slashes).
func splitIssuer(issuer string, insecureAllowHTTP bool) (*url.URL, string, error) {
	u, err := url.Parse(issuer)
	if err != nil {
		return nil, "", fmt.Errorf("invalid issuer URL: %w", err)
	}
	if u.Scheme != networking.HttpsScheme && !networking.IsLocalhost(u.Host) && !insecureAllowHTTP {
		return nil, "", fmt.Errorf("issuer must use HTTPS: %s", issuer)
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("issuer URL %q has no host", issuer)
	}
	base := &url.URL{Scheme: u.Scheme, Host: u.Host}
	return base, strings.Trim(u.EscapedPath(), "/"), nil
}
