package provenance

import (
	"crypto/sha256"
	"errors"
)

// testSigner records what it was asked to sign.
type testSigner struct {
	calls  int
	signed [][]byte
	err    error
}

func (s *testSigner) Sign(claim []byte) ([]byte, error) {
	s.calls++
	s.signed = append(s.signed, append([]byte(nil), claim...))
	if s.err != nil {
		return nil, s.err
	}
	sum := sha256.Sum256(claim)
	return sum[:], nil
}

func (s *testSigner) CertificateChain() [][]byte { return [][]byte{[]byte("test-cert")} }

type stampingSigner struct {
	testSigner
}

func (s *stampingSigner) Timestamp(h ClaimHash) ([]byte, error) {
	return []byte("ts:" + h.Short()), nil
}

var errBoom = errors.New("boom")

func mustRoot[T Payload](t interface{ Fatalf(string, ...any) }, p T, generator string) Verified[T] {
	v, err := Root(p, generator, &testSigner{})
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	return v
}
