// Package ledger is a SQLite journal of signing events.
//
// A *Ledger implements provenance.Journal: attach it to a builder or a
// pipeline scope and every successful Sign is recorded with its claim,
// ordered ingredient edges, assertions, signature, and payload bytes
// (inline, or in a storage.CAS when one is configured with WithBlobs).
//
// The ledger is a local index. It is not a manifest interchange format and
// it takes no part in claim hashing; values read back from it are only
// trusted after Restore has passed them through provenance.Verify.
package ledger
