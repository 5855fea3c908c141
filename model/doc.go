// Package model defines stable boundary types for API layers.
//
// Provenance identity (claim hashes, manifest ids) is unaffected by any
// projection. These structs are the only types intended for direct JSON/YAML
// serialization by consumers such as the CLI and the ledger gRPC service.
package model
