package provenance

// Signer is the signing capability a build needs. The core calls Sign once
// per build with the claim preimage and does not retry.
type Signer interface {
	Sign(claim []byte) ([]byte, error)
	CertificateChain() [][]byte
}

// Timestamper is implemented by signers that can obtain a timestamp token
// for a claim. Builds that require a timestamp fail without one.
type Timestamper interface {
	Timestamp(claim ClaimHash) ([]byte, error)
}

// Entry describes one completed signing event. The signature and timestamp
// are not part of the claim hash; they are only surfaced here.
type Entry struct {
	Claim            Claim
	ClaimHash        ClaimHash
	ManifestID       string
	MediaType        string
	Payload          []byte // canonical payload bytes; nil if the payload is not Canonical
	Signature        []byte
	CertificateChain [][]byte
	Timestamp        []byte
}

// Journal receives an Entry for every successful build it is attached to.
type Journal interface {
	Record(Entry) error
}

// JournalFunc adapts a function to Journal.
type JournalFunc func(Entry) error

func (f JournalFunc) Record(e Entry) error { return f(e) }
