package keys

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// ErrBadSignature is returned when a signature does not verify.
var ErrBadSignature = errors.New("keys: signature does not verify")

// VerifySignature checks sig over claim for a public key string produced by
// a signer's PublicKey. hashAlg is ignored for Ed25519, which always signs
// sha256(claim).
func VerifySignature(publicKey, hashAlg string, claim, sig []byte) error {
	alg, key, err := ParsePublicKey(publicKey)
	if err != nil {
		return err
	}
	switch alg {
	case AlgEd25519:
		digest, _ := digestFor(HashSHA256, claim)
		if !ed25519.Verify(ed25519.PublicKey(key), digest, sig) {
			return ErrBadSignature
		}
		return nil
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(key); err != nil {
			return fmt.Errorf("dilithium3 public key: %w", err)
		}
		digest, err := digestFor(hashAlg, claim)
		if err != nil {
			return err
		}
		if len(sig) != mode3.SignatureSize || !mode3.Verify(&pk, digest, sig) {
			return ErrBadSignature
		}
		return nil
	default:
		return fmt.Errorf("unsupported key algorithm %q", alg)
	}
}

// Verifier checks claim signatures made by one key. It satisfies
// ledger.SignatureVerifier. The certificate chain is ignored.
type Verifier struct {
	PublicKey string
	HashAlg   string
}

func (v Verifier) Verify(claim, sig []byte, _ [][]byte) error {
	return VerifySignature(v.PublicKey, v.HashAlg, claim, sig)
}
