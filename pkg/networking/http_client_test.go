package networking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "valid https url", input: "https://example.com", expected: true},
		{name: "valid http url", input: "http://example.com", expected: true},
		{name: "valid https url with path", input: "https://example.com/tenant/a", expected: true},
		{name: "valid https url with port", input: "https://example.com:8443", expected: true},
		{name: "empty string", input: "", expected: false},
		{name: "not a url", input: "not-a-url", expected: false},
		{name: "unsupported scheme", input: "ftp://example.com", expected: false},
		{name: "missing scheme", input: "example.com", expected: false},
		{name: "missing host", input: "https://", expected: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsURL(tt.input), "input: %s", tt.input)
		})
	}
}

func TestIsLocalhost(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input    string
		expected bool
	}{
		{"localhost", true},
		{"localhost:8080", true},
		{"127.0.0.1", true},
		{"127.0.0.1:9000", true},
		{"[::1]:8080", true},
		{"::1", true},
		{"example.com", false},
		{"10.0.0.1", false},
		{"", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsLocalhost(tt.input))
		})
	}
}

func TestValidateEndpointURL(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateEndpointURL("https://auth.example/token"))
	assert.NoError(t, ValidateEndpointURL("http://localhost:8666/token"))
	assert.NoError(t, ValidateEndpointURL("http://127.0.0.1/token"))
	assert.Error(t, ValidateEndpointURL("http://auth.example/token"))
	assert.Error(t, ValidateEndpointURL("https://"))
	assert.NoError(t, ValidateEndpointURLWithInsecure("http://auth.example/token", true))
}

func TestNewHTTPClientTimeout(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)

	c = NewHTTPClient(0)
	assert.Equal(t, HttpTimeout, c.Timeout)
}
