// Package provenance implements the provenance core: content addressing,
// claim hashing, the verification gate, manifest building and signing, and
// the result builders used by transforms.
//
// A Verified value can only come from Sign, Verify, or one of the transform
// result builders. Records are immutable and reference their parents by
// claim hash, so lineage always forms a DAG.
//
// The package persists nothing and does not log. Signing backends, storage,
// and pipeline scoping live in other packages.
package provenance
