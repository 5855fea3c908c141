package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// Key algorithm prefixes used in public key strings.
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

func formatKey(alg string, pub []byte) string {
	return alg + ":" + base64.StdEncoding.EncodeToString(pub)
}

// PublicKeyFromEd25519 encodes an Ed25519 public key as "ed25519:<base64>".
func PublicKeyFromEd25519(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return formatKey(AlgEd25519, pub), nil
}

// PublicKeyFromSeed returns the public key string for an Ed25519 seed.
func PublicKeyFromSeed(seed []byte) string {
	priv := ed25519.NewKeyFromSeed(seed)
	return formatKey(AlgEd25519, priv.Public().(ed25519.PublicKey))
}

// ParsePublicKey splits "alg:<base64>" into its parts and checks the key
// length for the algorithm.
func ParsePublicKey(s string) (alg string, key []byte, err error) {
	alg, b64, ok := strings.Cut(s, ":")
	if !ok || b64 == "" {
		return "", nil, errors.New("public key must be alg:base64")
	}
	key, err = base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, fmt.Errorf("public key: %w", err)
	}
	switch alg {
	case AlgEd25519:
		if len(key) != ed25519.PublicKeySize {
			return "", nil, fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
		}
	case AlgDilithium3:
		if len(key) != mode3.PublicKeySize {
			return "", nil, fmt.Errorf("dilithium3 public key must be %d bytes, got %d", mode3.PublicKeySize, len(key))
		}
	default:
		return "", nil, fmt.Errorf("unsupported key algorithm %q", alg)
	}
	return alg, key, nil
}
