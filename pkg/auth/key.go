package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// keyHashLen is the number of hex characters kept from each fingerprint.
const keyHashLen = 16

// CredentialKey computes a stable fingerprint for a (scheme, raw
// credential) pair. It is used as the cache and store key, so two
// configurations that are semantically identical must collide: hashing
// goes through the typed model, which drops any open-schema extras a
// configuration file may carry, and map-valued fields serialize with
// sorted keys.
func CredentialKey(scheme *Scheme, raw *Credential) string {
	schemeType := "none"
	schemeHash := "none"
	if scheme != nil {
		schemeType = string(scheme.Type)
		schemeHash = stableHash(scheme)
	}
	credType := "none"
	credHash := "none"
	if raw != nil {
		credType = string(raw.Type)
		credHash = stableHash(raw)
	}
	return fmt.Sprintf("%s_%s_%s_%s", schemeType, schemeHash, credType, credHash)
}

// stableHash returns a short hex digest of the value's canonical JSON.
// encoding/json emits struct fields in declaration order and sorts map
// keys, so the serialization is deterministic for the model types.
func stableHash(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// The model types are always marshalable; this path exists only to
		// keep the signature non-failing.
		return "unhashable"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:keyHashLen]
}
