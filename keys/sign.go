package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// Hash algorithms accepted by the signers.
const (
	HashSHA256  = "sha256"
	HashSHA512  = "sha512"
	HashSHA3256 = "sha3-256"
)

func digestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case HashSHA256:
		s := sha256.Sum256(message)
		return s[:], nil
	case HashSHA512:
		s := sha512.Sum512(message)
		return s[:], nil
	case HashSHA3256:
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", hashAlg)
	}
}

// Ed25519Signer signs sha256(claim) with an Ed25519 key. It satisfies
// provenance.Signer.
type Ed25519Signer struct {
	priv  ed25519.PrivateKey
	chain [][]byte
}

// NewEd25519Signer derives the key from a 32-byte seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// WithChain sets the certificate chain reported with each signature. The
// blobs are opaque here and are never validated.
func (s *Ed25519Signer) WithChain(chain [][]byte) *Ed25519Signer {
	s.chain = chain
	return s
}

func (s *Ed25519Signer) Sign(claim []byte) ([]byte, error) {
	if len(s.priv) != ed25519.PrivateKeySize {
		return nil, errors.New("ed25519 signer has no key")
	}
	digest := sha256.Sum256(claim)
	return ed25519.Sign(s.priv, digest[:]), nil
}

func (s *Ed25519Signer) CertificateChain() [][]byte { return s.chain }

// PublicKey returns the "ed25519:<base64>" form of the verification key.
func (s *Ed25519Signer) PublicKey() string {
	return formatKey(AlgEd25519, s.priv.Public().(ed25519.PublicKey))
}

// HashAlg is always sha256 for Ed25519 signers.
func (s *Ed25519Signer) HashAlg() string { return HashSHA256 }

// Dilithium3Signer signs hash(claim) with a post-quantum Dilithium3 key.
type Dilithium3Signer struct {
	pub     *mode3.PublicKey
	priv    *mode3.PrivateKey
	hashAlg string
	chain   [][]byte
}

// NewDilithium3Signer generates a key pair from rand. hashAlg must be one
// of sha256, sha512, sha3-256.
func NewDilithium3Signer(rand io.Reader, hashAlg string) (*Dilithium3Signer, error) {
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, err
	}
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{pub: pub, priv: priv, hashAlg: hashAlg}, nil
}

// NewDilithium3SignerFromSeed derives the key pair deterministically.
func NewDilithium3SignerFromSeed(seed *[mode3.SeedSize]byte, hashAlg string) (*Dilithium3Signer, error) {
	if _, err := digestFor(hashAlg, nil); err != nil {
		return nil, err
	}
	pub, priv := mode3.NewKeyFromSeed(seed)
	return &Dilithium3Signer{pub: pub, priv: priv, hashAlg: hashAlg}, nil
}

func (s *Dilithium3Signer) WithChain(chain [][]byte) *Dilithium3Signer {
	s.chain = chain
	return s
}

func (s *Dilithium3Signer) Sign(claim []byte) ([]byte, error) {
	if s.priv == nil {
		return nil, errors.New("dilithium3 signer has no key")
	}
	digest, err := digestFor(s.hashAlg, claim)
	if err != nil {
		return nil, err
	}
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest, sig)
	return sig, nil
}

func (s *Dilithium3Signer) CertificateChain() [][]byte { return s.chain }

func (s *Dilithium3Signer) PublicKey() string {
	return formatKey(AlgDilithium3, s.pub.Bytes())
}

func (s *Dilithium3Signer) HashAlg() string { return s.hashAlg }

// EncodeSignature renders a signature for text output.
func EncodeSignature(sig []byte) string { return base64.StdEncoding.EncodeToString(sig) }
