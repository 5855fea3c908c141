package provenance

// Unverified wraps a payload and a record that have not been checked.
// Anyone can build one; only Verify turns it into a Verified value.
type Unverified[T Payload] struct {
	payload T
	record  Record
}

// NewUnverified pairs an externally sourced payload with its claimed record.
func NewUnverified[T Payload](payload T, record Record) Unverified[T] {
	return Unverified[T]{payload: clonePayload(payload), record: record}
}

func (u Unverified[T]) Payload() T     { return clonePayload(u.payload) }
func (u Unverified[T]) Record() Record { return u.record }

// seal marks values built by this package. Go cannot forbid the zero value
// of an exported struct type, so every function that needs a verified input
// checks the seal and rejects a zero Verified.
type seal struct{ ok bool }

var sealed = &seal{ok: true}

// Verified wraps a payload whose record was produced by Sign, Verify, or a
// transform result builder. Its fields are unexported; the zero value is
// not verified (see Valid).
type Verified[T Payload] struct {
	payload T
	record  Record
	seal    *seal
}

func newVerified[T Payload](payload T, record Record) Verified[T] {
	return Verified[T]{payload: payload, record: record, seal: sealed}
}

// Valid reports whether v came from a trusted constructor.
func (v Verified[T]) Valid() bool { return v.seal == sealed }

// Payload returns the wrapped value. Payloads implementing Cloner are
// returned as copies; editing one does not touch v.
func (v Verified[T]) Payload() T { return clonePayload(v.payload) }

func (v Verified[T]) Record() Record { return v.record }

// ClaimHash is shorthand for v.Record().ClaimHash().
func (v Verified[T]) ClaimHash() ClaimHash { return v.record.claimHash }

// Unverified returns the unverified view of v, e.g. for handing the value to
// another party that will call Verify.
func (v Verified[T]) Unverified() Unverified[T] {
	return Unverified[T]{payload: v.payload, record: v.record}
}

// Ingredient is satisfied only by Verified values; it lets builders accept
// verified values of any payload type as ingredients.
type Ingredient interface {
	Record() Record
	verified() bool
}

func (v Verified[T]) verified() bool { return v.Valid() }

func checkIngredient(src Ingredient) error {
	if src == nil || !src.verified() {
		return newError(KindVerification, RuleUnsealed, "ingredient is not a verified value")
	}
	return nil
}

// RequireVerified returns a Verification error unless v came from a trusted
// constructor.
func RequireVerified[T Payload](v Verified[T]) error {
	if !v.Valid() {
		return newError(KindVerification, RuleUnsealed, "value is not verified")
	}
	return nil
}
