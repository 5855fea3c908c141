package provenance

import "fmt"

// Verify is the gate for externally sourced values. It checks that the
// record carries the expected claim hash and that the payload still matches
// the record's asset binding. Nothing is altered; only the state changes.
func Verify[T Payload](u Unverified[T], expected ClaimHash) (Verified[T], error) {
	if got := u.record.claimHash; got != expected {
		return Verified[T]{}, newError(KindVerification, RuleClaimMismatch,
			fmt.Sprintf("claim hash mismatch: record %s, expected %s", got.Short(), expected.Short()))
	}
	if got, want := u.payload.ContentHash(), u.record.binding.Hash(); got != want {
		return Verified[T]{}, newError(KindVerification, RuleBindingMismatch,
			fmt.Sprintf("asset binding mismatch: payload %s, %s binding %s", got.Short(), u.record.binding.Kind(), want.Short()))
	}
	return newVerified(u.payload, u.record), nil
}

// CheckRecord re-derives what can be derived locally from a verified value:
// the binding against the payload and the manifest id against the claim
// hash. It returns the ingredient claim hashes in order, for tracing a
// chain by hand.
func CheckRecord[T Payload](v Verified[T]) ([]ClaimHash, error) {
	if err := RequireVerified(v); err != nil {
		return nil, err
	}
	if _, err := Verify(v.Unverified(), v.ClaimHash()); err != nil {
		return nil, err
	}
	if v.record.manifestID != ManifestID(v.record.claimHash) {
		return nil, newError(KindVerification, RuleClaimMismatch, "manifest id does not match claim hash")
	}
	out := make([]ClaimHash, len(v.record.ingredients))
	for i, ing := range v.record.ingredients {
		out[i] = ing.ClaimHash
	}
	return out, nil
}
