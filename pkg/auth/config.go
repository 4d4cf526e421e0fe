package auth

// Config binds a security scheme to its credential material for one tool.
// The raw credential comes from configuration and is immutable; the
// exchanged credential is produced and replaced by the pipeline.
type Config struct {
	Scheme *Scheme `json:"scheme"`

	// Raw is the configuration-supplied credential.
	Raw *Credential `json:"raw_credential,omitempty"`

	// Exchanged is the processed credential, suitable for direct use. It is
	// written by the credential manager and by the handler when recording
	// a pending authorization request.
	Exchanged *Credential `json:"exchanged_credential,omitempty"`

	// Key caches CredentialKey(Scheme, Raw). Computed on first use.
	Key string `json:"key,omitempty"`
}

// CredentialKey returns the config's fingerprint, computing and caching it
// on first call.
func (c *Config) CredentialKey() string {
	if c.Key == "" {
		c.Key = CredentialKey(c.Scheme, c.Raw)
	}
	return c.Key
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	return &Config{
		Scheme:    c.Scheme.Clone(),
		Raw:       c.Raw.Clone(),
		Exchanged: c.Exchanged.Clone(),
		Key:       c.Key,
	}
}

// Context is the per-invocation surface the credential pipeline operates
// against. It is owned by the host: all persistence goes through these
// hooks and the core never touches disk or network for it.
type Context interface {
	// State returns the invocation's mutable state map. Values written here
	// survive across tool invocations iff the host's state implementation
	// is durable.
	State() map[string]any

	// LoadCredential returns the processed credential stored for the
	// config, or nil.
	LoadCredential(cfg *Config) *Credential

	// SaveCredential persists the config's exchanged credential.
	SaveCredential(cfg *Config)

	// RequestCredential registers a consent request for the host to
	// surface. Non-blocking.
	RequestCredential(cfg *Config)

	// AuthResponse returns user-supplied OAuth callback data for the
	// config if present, or nil. Non-blocking.
	AuthResponse(cfg *Config) *Credential
}
