package provenance

import "fmt"

// DefaultGenerator labels claims whose builder was not given a generator.
const DefaultGenerator = "provchain/0.1"

// Builder accumulates a payload, its ingredients, and assertions, and turns
// them into a verified value on Sign. A Builder is single use.
type Builder[T Payload] struct {
	payload       T
	generator     string
	ingredients   []IngredientRef
	assertions    []CustomAssertion
	journal       Journal
	needTimestamp bool

	err    error
	signed bool
}

// NewBuilder starts a manifest for payload.
func NewBuilder[T Payload](payload T) *Builder[T] {
	return &Builder[T]{payload: clonePayload(payload), generator: DefaultGenerator}
}

func (b *Builder[T]) mustOpen() {
	if b.signed {
		panic("provenance: builder already signed")
	}
}

// Generator sets the generator label folded into the claim hash.
func (b *Builder[T]) Generator(label string) *Builder[T] {
	b.mustOpen()
	b.generator = label
	return b
}

// AddIngredient appends src as a parent. Order is significant: it is part
// of the claim hash. An unverified src makes Sign fail.
func (b *Builder[T]) AddIngredient(src Ingredient, rel Relation) *Builder[T] {
	b.mustOpen()
	if err := checkIngredient(src); err != nil {
		if b.err == nil {
			b.err = err
		}
		return b
	}
	rec := src.Record()
	b.ingredients = append(b.ingredients, IngredientRef{
		ClaimHash: rec.claimHash,
		Binding:   rec.binding,
		Relation:  rel,
	})
	return b
}

// AddAssertion appends a custom assertion.
func (b *Builder[T]) AddAssertion(a CustomAssertion) *Builder[T] {
	b.mustOpen()
	b.assertions = append(b.assertions, a)
	return b
}

// Journal attaches a journal that receives the signing event.
func (b *Builder[T]) Journal(j Journal) *Builder[T] {
	b.mustOpen()
	b.journal = j
	return b
}

// RequireTimestamp makes Sign fail unless the signer is a Timestamper.
func (b *Builder[T]) RequireTimestamp(on bool) *Builder[T] {
	b.mustOpen()
	b.needTimestamp = on
	return b
}

// Claim returns the claim Sign would produce.
func (b *Builder[T]) Claim() Claim {
	return Claim{
		Generator:   b.generator,
		Binding:     HashBinding(b.payload.ContentHash()),
		Ingredients: append([]IngredientRef(nil), b.ingredients...),
		Assertions:  append([]CustomAssertion(nil), b.assertions...),
	}
}

// Sign computes the claim, invokes signer exactly once, and returns the
// payload as a verified value. The builder cannot be used afterwards.
func (b *Builder[T]) Sign(signer Signer) (Verified[T], error) {
	if b.signed {
		return Verified[T]{}, newError(KindSigning, RuleBuilderConsumed, "builder already signed")
	}
	b.signed = true
	if b.err != nil {
		return Verified[T]{}, b.err
	}
	if signer == nil {
		return Verified[T]{}, newError(KindSigning, RuleSignerFailed, "no signer")
	}

	claim := b.Claim()
	preimage := claim.Bytes()
	hash := claim.Hash()
	record := NewRecord(hash, claim.Binding, claim.Ingredients)

	var ts Timestamper
	if b.needTimestamp {
		var ok bool
		if ts, ok = signer.(Timestamper); !ok {
			return Verified[T]{}, newError(KindSigning, RuleTimestampMissing,
				fmt.Sprintf("signer %T cannot provide a timestamp", signer))
		}
	}

	sig, err := signer.Sign(preimage)
	if err != nil {
		return Verified[T]{}, wrapError(KindSigning, RuleSignerFailed, "signer failed", err)
	}
	chain := signer.CertificateChain()

	var token []byte
	if ts != nil {
		if token, err = ts.Timestamp(hash); err != nil {
			return Verified[T]{}, wrapError(KindSigning, RuleTimestampMissing, "timestamp failed", err)
		}
	}

	if b.journal != nil {
		payload, ok := CanonicalBytesOf(b.payload)
		if ok && payload == nil {
			payload = []byte{}
		}
		entry := Entry{
			Claim:            claim,
			ClaimHash:        hash,
			ManifestID:       record.manifestID,
			MediaType:        MediaTypeOf(b.payload),
			Payload:          payload,
			Signature:        sig,
			CertificateChain: chain,
			Timestamp:        token,
		}
		if err := b.journal.Record(entry); err != nil {
			return Verified[T]{}, wrapError(KindSigning, RuleJournalFailed, "journal rejected entry", err)
		}
	}

	return newVerified(b.payload, record), nil
}

// Root signs payload as an origin value with no ingredients.
func Root[T Payload](payload T, generator string, signer Signer) (Verified[T], error) {
	return NewBuilder(payload).Generator(generator).Sign(signer)
}
