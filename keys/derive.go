package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
)

const roleKDFLabel = "xdao-provchain-keys-v1"

// DeriveRoleSeed deterministically derives a role-specific Ed25519 seed from
// a generator's root seed, so one identity can sign as several pipeline
// roles (e.g. "ingest", "render").
//
// seed = sha256(root ∥ 0 ∥ label ∥ 0 ∥ "role:" ∥ role)
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(roleKDFLabel))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	return h.Sum(nil)[:ed25519.SeedSize], nil
}
