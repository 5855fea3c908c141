package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot_KnownVector(t *testing.T) {
	v := mustRoot(t, Int64(5), "demo")

	assert.Equal(t, "f13ee6ed54ea2aae9fc49a9faeb5da6e8ddef0e12ed5d30d35a624ae813e0485", v.Record().Binding().Hash().String())
	assert.Equal(t, "a9e3099b90e30ac051657e44456e61b19ddaec370adcf3a567d1a73278f186dd", v.ClaimHash().String())
	assert.Equal(t, "urn:uuid:a9e3099b-90e3-0ac0-5165-7e44456e61b1", v.Record().ManifestID())
	assert.True(t, v.Record().IsRoot())
	assert.True(t, v.Valid())
}

func TestSign_Deterministic(t *testing.T) {
	parent := mustRoot(t, Text("parent"), "gen")
	a, err := NewBuilder(Bytes("payload")).
		Generator("gen").
		AddIngredient(parent, ParentOf).
		AddAssertion(CustomAssertion{Label: "note", Data: []byte("x")}).
		Sign(&testSigner{})
	require.NoError(t, err)
	b, err := NewBuilder(Bytes("payload")).
		Generator("gen").
		AddIngredient(parent, ParentOf).
		AddAssertion(CustomAssertion{Label: "note", Data: []byte("x")}).
		Sign(&testSigner{})
	require.NoError(t, err)

	assert.Equal(t, a.ClaimHash(), b.ClaimHash())
	assert.Equal(t, a.Record().ManifestID(), b.Record().ManifestID())
}

func TestSign_InputsChangeClaimHash(t *testing.T) {
	base := mustRoot(t, Int64(1), "g")
	p1 := mustRoot(t, Int64(2), "g")
	p2 := mustRoot(t, Int64(3), "g")

	withOrder := func(first, second Ingredient) ClaimHash {
		v, err := NewBuilder(Int64(9)).Generator("g").
			AddIngredient(first, ComposedFrom).
			AddIngredient(second, ComposedFrom).
			Sign(&testSigner{})
		require.NoError(t, err)
		return v.ClaimHash()
	}

	assert.NotEqual(t, mustRoot(t, Int64(1), "other").ClaimHash(), base.ClaimHash(), "generator")
	assert.NotEqual(t, withOrder(p1, p2), withOrder(p2, p1), "ingredient order")

	rel := func(r Relation) ClaimHash {
		v, err := NewBuilder(Int64(9)).Generator("g").AddIngredient(p1, r).Sign(&testSigner{})
		require.NoError(t, err)
		return v.ClaimHash()
	}
	assert.Equal(t, rel(ParentOf), rel(DerivedFrom), "relation is not hashed")
}

func TestSign_CallsSignerOnceWithPreimage(t *testing.T) {
	s := &testSigner{}
	b := NewBuilder(Text("hello")).Generator("g")
	claim := b.Claim()

	v, err := b.Sign(s)
	require.NoError(t, err)
	require.Equal(t, 1, s.calls)
	assert.Equal(t, claim.Bytes(), s.signed[0])
	assert.Equal(t, claim.Hash(), v.ClaimHash())
}

func TestSign_SignerFailureAborts(t *testing.T) {
	var got []Entry
	j := JournalFunc(func(e Entry) error { got = append(got, e); return nil })

	_, err := NewBuilder(Int64(1)).Journal(j).Sign(&testSigner{err: errBoom})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindSigning))
	assert.Equal(t, RuleSignerFailed, RuleID(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, got, "journal must not see failed builds")
}

func TestSign_SingleUse(t *testing.T) {
	b := NewBuilder(Int64(1))
	_, err := b.Sign(&testSigner{})
	require.NoError(t, err)

	_, err = b.Sign(&testSigner{})
	assert.Equal(t, RuleBuilderConsumed, RuleID(err))
	assert.PanicsWithValue(t, "provenance: builder already signed", func() {
		b.AddIngredient(mustRoot(t, Int64(2), "g"), ParentOf)
	})
}

func TestSign_RejectsZeroVerifiedIngredient(t *testing.T) {
	var forged Verified[Int64]
	_, err := NewBuilder(Int64(1)).AddIngredient(forged, DerivedFrom).Sign(&testSigner{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindVerification))
	assert.Equal(t, RuleUnsealed, RuleID(err))
}

func TestSign_Timestamp(t *testing.T) {
	_, err := NewBuilder(Int64(1)).RequireTimestamp(true).Sign(&testSigner{})
	assert.Equal(t, RuleTimestampMissing, RuleID(err))

	var entry Entry
	v, err := NewBuilder(Int64(1)).
		RequireTimestamp(true).
		Journal(JournalFunc(func(e Entry) error { entry = e; return nil })).
		Sign(&stampingSigner{})
	require.NoError(t, err)
	assert.Equal(t, []byte("ts:"+v.ClaimHash().Short()), entry.Timestamp)
}

func TestSign_JournalEntry(t *testing.T) {
	var entries []Entry
	j := JournalFunc(func(e Entry) error { entries = append(entries, e); return nil })

	parent := mustRoot(t, Int64(1), "g")
	v, err := NewBuilder(Text("child")).Generator("g").AddIngredient(parent, DerivedFrom).Journal(j).Sign(&testSigner{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, v.ClaimHash(), e.ClaimHash)
	assert.Equal(t, e.Claim.Hash(), e.ClaimHash)
	assert.Equal(t, "text/plain", e.MediaType)
	assert.Equal(t, []byte("child"), e.Payload)
	assert.Equal(t, [][]byte{[]byte("test-cert")}, e.CertificateChain)
	assert.NotEmpty(t, e.Signature)
	require.Len(t, e.Claim.Ingredients, 1)
	assert.Equal(t, parent.ClaimHash(), e.Claim.Ingredients[0].ClaimHash)

	_, err = NewBuilder(Int64(2)).Journal(JournalFunc(func(Entry) error { return errBoom })).Sign(&testSigner{})
	assert.Equal(t, RuleJournalFailed, RuleID(err))
}

func TestRecord_IngredientsAreCopies(t *testing.T) {
	parent := mustRoot(t, Int64(1), "g")
	v, err := NewBuilder(Int64(2)).AddIngredient(parent, DerivedFrom).Sign(&testSigner{})
	require.NoError(t, err)

	ings := v.Record().Ingredients()
	ings[0].ClaimHash = ClaimHash{}
	assert.Equal(t, parent.ClaimHash(), v.Record().Ingredient(0).ClaimHash)
}

func TestBoxBinding(t *testing.T) {
	h := Sum([]byte("x"))
	b, err := BoxBinding(10, 5, h)
	require.NoError(t, err)
	off, n := b.Range()
	assert.Equal(t, uint64(10), off)
	assert.Equal(t, uint64(5), n)
	assert.Equal(t, h, b.Hash())

	_, err = BoxBinding(0, 0, h)
	assert.True(t, IsKind(err, KindBinding))
	_, err = BoxBinding(^uint64(0), 2, h)
	assert.Equal(t, RuleBoxRange, RuleID(err))
}

func TestRelation_RoundTrip(t *testing.T) {
	for _, r := range []Relation{ParentOf, ComponentOf, InputTo, DerivedFrom, ComposedFrom} {
		got, err := ParseRelation(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	assert.Equal(t, "composedFrom", ComposedFrom.String())
	_, err := ParseRelation("siblingOf")
	assert.Error(t, err)
}

func TestPayloadEncodings(t *testing.T) {
	assert.Equal(t, []byte{5, 0, 0, 0}, Int32(5).CanonicalBytes())
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Int64(-1).CanonicalBytes())
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0xf0, 0x3f}, Float64(1).CanonicalBytes())
	// Composed and decomposed forms hash the same.
	assert.Equal(t, Text("\u00e9").ContentHash(), Text("e\u0301").ContentHash())
	assert.Equal(t, DefaultMediaType, MediaTypeOf(Bytes("x")))
	assert.Equal(t, "text/plain", MediaTypeOf(Text("x")))
}

func TestSign_BytesPayloadIsOwned(t *testing.T) {
	raw := []byte("hello")
	v, err := NewBuilder(Bytes(raw)).Sign(&testSigner{})
	require.NoError(t, err)

	raw[0] = 'J'
	assert.Equal(t, Bytes("hello"), v.Payload())

	p := v.Payload()
	p[0] = 'Y'
	assert.Equal(t, Bytes("hello"), v.Payload())

	_, err = CheckRecord(v)
	assert.NoError(t, err)

	u := NewUnverified(Bytes(raw), v.Record())
	raw[0] = 'h'
	_, err = Verify(u, v.ClaimHash())
	assert.Equal(t, RuleBindingMismatch, RuleID(err), "unverified value keeps the bytes it was built with")
}

func TestSign_EmptyBytesPayloadIsJournaled(t *testing.T) {
	var got Entry
	_, err := NewBuilder(Bytes{}).
		Journal(JournalFunc(func(e Entry) error { got = e; return nil })).
		Sign(&testSigner{})
	require.NoError(t, err)
	assert.NotNil(t, got.Payload, "empty canonical payload is still a payload")
	assert.Empty(t, got.Payload)

	_, err = NewBuilder(Bytes(nil)).
		Journal(JournalFunc(func(e Entry) error { got = e; return nil })).
		Sign(&testSigner{})
	require.NoError(t, err)
	assert.NotNil(t, got.Payload)
}
