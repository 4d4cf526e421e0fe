package auth

// HeaderParamPrefix prefixes the internal argument name of header-placed
// credentials so they cannot collide with parameters a tool declares
// itself. The wire header name is unaffected.
const HeaderParamPrefix = "agentry_auth_"

// Param is a concrete request parameter produced from a finalized
// credential. Tools attach it to their outbound HTTP call.
type Param struct {
	// In is where the parameter is placed: header, query, or cookie.
	In APIKeyLocation `json:"in"`
	// Name is the wire name: the header, query parameter, or cookie name.
	Name string `json:"name"`
	// Value is the credential value, including any scheme prefix
	// (e.g. "Bearer <token>").
	Value string `json:"value"`
}

// InternalName returns the collision-safe argument name for hosts that
// merge credential parameters into a tool's argument map before the call
// is assembled. HTTPTool applies params to the outbound request directly
// and never consults it; combine it with Value when routing credentials
// through an argument map instead.
func (p *Param) InternalName() string {
	if p.In == APIKeyInHeader {
		return HeaderParamPrefix + p.Name
	}
	return p.Name
}
