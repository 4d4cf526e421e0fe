// Package networking provides shared HTTP client construction and endpoint
// validation for the discovery and token-endpoint transports.
package networking

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HttpTimeout is the default timeout for outgoing HTTP requests.
const HttpTimeout = 30 * time.Second

// HttpsScheme is the URL scheme required for non-local endpoints.
const HttpsScheme = "https"

// HTTPClient is the interface implemented by *http.Client. It exists so
// tests can substitute a recording client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns an HTTP client with sane transport timeouts.
// Discovery and token-endpoint calls create one per operation.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = HttpTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 5 * time.Second,
		},
	}
}

// IsURL reports whether the string is a well-formed http(s) URL with a host.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != HttpsScheme {
		return false
	}
	return u.Host != ""
}

// IsLocalhost reports whether the host (optionally host:port) refers to the
// local machine. Localhost endpoints are exempt from the HTTPS requirement
// to support local development and testing.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ValidateEndpointURL validates that an OAuth endpoint URL is well-formed
// and uses HTTPS. Localhost endpoints may use plain HTTP.
func ValidateEndpointURL(endpoint string) error {
	return ValidateEndpointURLWithInsecure(endpoint, false)
}

// ValidateEndpointURLWithInsecure is ValidateEndpointURL with an escape
// hatch for HTTP endpoints, intended for testing only.
func ValidateEndpointURLWithInsecure(endpoint string, insecureAllowHTTP bool) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("malformed URL %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", endpoint)
	}
	if u.Scheme == HttpsScheme {
		return nil
	}
	if u.Scheme == "http" && (insecureAllowHTTP || IsLocalhost(u.Host)) {
		return nil
	}
	return fmt.Errorf("URL %q must use HTTPS", endpoint)
}
