package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSize is the length of every digest used by this package.
const HashSize = sha256.Size

// ContentHash is the SHA-256 digest of a payload's canonical bytes.
type ContentHash [HashSize]byte

// ClaimHash is the SHA-256 digest identifying a single claim.
type ClaimHash [HashSize]byte

// Sum returns the content hash of b.
func Sum(b []byte) ContentHash {
	return ContentHash(sha256.Sum256(b))
}

func (h ContentHash) String() string { return hex.EncodeToString(h[:]) }

// Short renders the first 8 bytes as hex, for logs and debugging.
func (h ContentHash) Short() string { return hex.EncodeToString(h[:8]) }

func (h ContentHash) IsZero() bool { return h == ContentHash{} }

func (h ClaimHash) String() string { return hex.EncodeToString(h[:]) }

// Short renders the first 8 bytes as hex, for logs and debugging.
func (h ClaimHash) Short() string { return hex.EncodeToString(h[:8]) }

func (h ClaimHash) IsZero() bool { return h == ClaimHash{} }

// ParseClaimHash decodes a 64-character hex claim hash.
func ParseClaimHash(s string) (ClaimHash, error) {
	var out ClaimHash
	if err := decodeHex(out[:], s); err != nil {
		return ClaimHash{}, fmt.Errorf("claim hash: %w", err)
	}
	return out, nil
}

// ParseContentHash decodes a 64-character hex content hash.
func ParseContentHash(s string) (ContentHash, error) {
	var out ContentHash
	if err := decodeHex(out[:], s); err != nil {
		return ContentHash{}, fmt.Errorf("content hash: %w", err)
	}
	return out, nil
}

func decodeHex(dst []byte, s string) error {
	if len(s) != hex.EncodedLen(len(dst)) {
		return fmt.Errorf("expected %d hex chars, got %d", hex.EncodedLen(len(dst)), len(s))
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}
