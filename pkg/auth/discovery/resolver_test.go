package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oauth2-proxy/mockoidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveMetadata(t *testing.T, w http.ResponseWriter, md Metadata) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(md))
}

func TestResolveCandidateOrdering(t *testing.T) {
	t.Parallel()

	var paths []string
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path != "/tenant/.well-known/openid-configuration" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		serveMetadata(t, w, Metadata{
			Issuer:                server.URL + "/tenant",
			AuthorizationEndpoint: server.URL + "/auth",
			TokenEndpoint:         server.URL + "/token",
		})
	}))
	defer server.Close()

	r := NewResolver()
	md, err := r.Resolve(context.Background(), server.URL+"/tenant")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/.well-known/oauth-authorization-server/tenant",
		"/.well-known/openid-configuration/tenant",
		"/tenant/.well-known/openid-configuration",
	}, paths)
	assert.Equal(t, server.URL+"/token", md.TokenEndpoint)
}

func TestResolveRootIssuerSkipsPathAppending(t *testing.T) {
	t.Parallel()

	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := NewResolver()
	_, err := r.Resolve(context.Background(), server.URL)
	require.Error(t, err)

	// With no path component only the two root well-known forms are tried.
	assert.Equal(t, []string{
		"/.well-known/oauth-authorization-server",
		"/.well-known/openid-configuration",
	}, paths)
}

func TestResolveFirstCandidateWins(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/.well-known/oauth-authorization-server/t" {
			serveMetadata(t, w, Metadata{
				Issuer:        server.URL + "/t",
				TokenEndpoint: server.URL + "/first-token",
			})
			return
		}
		t.Errorf("unexpected request to %s after first candidate succeeded", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	md, err := NewResolver().Resolve(context.Background(), server.URL+"/t")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/first-token", md.TokenEndpoint)
}

func TestResolveRejectsIssuerMismatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Well-formed document naming a different issuer: a mix-up attack.
		serveMetadata(t, w, Metadata{
			Issuer:        "https://evil.example",
			TokenEndpoint: "https://evil.example/token",
		})
	}))
	defer server.Close()

	_, err := NewResolver().Resolve(context.Background(), server.URL+"/tenant")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer mismatch")
}

func TestResolveToleratesTrailingSlash(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		serveMetadata(t, w, Metadata{
			// Normalizes equal to the requested issuer modulo one slash.
			Issuer:        server.URL + "/tenant/",
			TokenEndpoint: server.URL + "/token",
		})
	}))
	defer server.Close()

	md, err := NewResolver().Resolve(context.Background(), server.URL+"/tenant")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/token", md.TokenEndpoint)
}

func TestResolveSkipsBadCandidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, first bool, issuer string)
	}{
		{
			name: "malformed JSON then valid",
			handler: func(w http.ResponseWriter, first bool, issuer string) {
				if first {
					w.Header().Set("Content-Type", "application/json")
					w.Write([]byte("{not json"))
					return
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(Metadata{Issuer: issuer, TokenEndpoint: issuer + "/token"})
			},
		},
		{
			name: "server error then valid",
			handler: func(w http.ResponseWriter, first bool, issuer string) {
				if first {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(Metadata{Issuer: issuer, TokenEndpoint: issuer + "/token"})
			},
		},
		{
			name: "wrong content type then valid",
			handler: func(w http.ResponseWriter, first bool, issuer string) {
				if first {
					w.Header().Set("Content-Type", "text/html")
					w.Write([]byte("<html></html>"))
					return
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(Metadata{Issuer: issuer, TokenEndpoint: issuer + "/token"})
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			count := 0
			var server *httptest.Server
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				count++
				tt.handler(w, count == 1, server.URL+"/t")
			}))
			defer server.Close()

			md, err := NewResolver().Resolve(context.Background(), server.URL+"/t")
			require.NoError(t, err)
			assert.Equal(t, server.URL+"/token", md.TokenEndpoint)
		})
	}
}

func TestResolveRequiresHTTPS(t *testing.T) {
	t.Parallel()

	_, err := NewResolver().Resolve(context.Background(), "http://issuer.example/tenant")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPS")
}

func TestResolveProtectedResource(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/oauth-protected-resource/api", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ResourceMetadata{
			Resource:             server.URL + "/api",
			AuthorizationServers: []string{"https://issuer.example"},
		})
	}))
	defer server.Close()

	md, err := NewResolver().ResolveProtectedResource(context.Background(), server.URL+"/api")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://issuer.example"}, md.AuthorizationServers)
}

func TestResolveAgainstMockOIDCProvider(t *testing.T) {
	t.Parallel()

	m, err := mockoidc.Run()
	require.NoError(t, err)
	defer m.Shutdown()

	md, err := NewResolver().Resolve(context.Background(), m.Issuer())
	require.NoError(t, err)
	assert.Equal(t, m.Issuer(), md.Issuer)
	assert.NotEmpty(t, md.AuthorizationEndpoint)
	assert.NotEmpty(t, md.TokenEndpoint)
}
