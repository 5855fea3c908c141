package provenance

import (
	"crypto/sha256"
	"encoding/hex"
)

// ParamCommit is a one-way commitment to a transform parameter. Only the
// hash is kept; the parameter value cannot be recovered from it.
type ParamCommit struct {
	Name string
	Hash [HashSize]byte
}

// CommitBytes commits to a parameter's canonical bytes.
func CommitBytes(name string, canonical []byte) ParamCommit {
	return ParamCommit{Name: name, Hash: sha256.Sum256(canonical)}
}

// Commit commits to a parameter that knows its canonical encoding.
func Commit(name string, v Canonical) ParamCommit {
	return CommitBytes(name, v.CanonicalBytes())
}

func (c ParamCommit) HashHex() string { return hex.EncodeToString(c.Hash[:]) }
