// Package keys provides the signing backends used by provchain binaries:
// Ed25519 and Dilithium3 signers satisfying provenance.Signer, signature
// verification, and a local key store.
//
// API stability:
//
// Stable:
//   - Signers, public key strings, VerifySignature, and role-seed derivation.
//
// Experimental:
//   - The filesystem-backed KeyStore. It is a local convenience and may
//     change in minor releases.
package keys
