package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_RoundTrip(t *testing.T) {
	signed := mustRoot(t, Text("hello"), "g")

	got, err := Verify(signed.Unverified(), signed.ClaimHash())
	require.NoError(t, err)
	assert.True(t, got.Valid())
	assert.Equal(t, signed.Payload(), got.Payload())
	assert.Equal(t, signed.Record(), got.Record())
}

func TestVerify_ClaimMismatch(t *testing.T) {
	signed := mustRoot(t, Text("hello"), "g")
	other := mustRoot(t, Text("other"), "g")

	_, err := Verify(signed.Unverified(), other.ClaimHash())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindVerification))
	assert.Equal(t, RuleClaimMismatch, RuleID(err))
	assert.Contains(t, err.Error(), "claim hash mismatch")
}

func TestVerify_TamperedPayload(t *testing.T) {
	signed := mustRoot(t, Text("hello"), "g")
	tampered := NewUnverified(Text("hellO"), signed.Record())

	_, err := Verify(tampered, signed.ClaimHash())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindVerification))
	assert.Equal(t, RuleBindingMismatch, RuleID(err))
	assert.Contains(t, err.Error(), "asset binding mismatch")
}

func TestVerify_BoxBinding(t *testing.T) {
	payload := Bytes("embedded")
	claim := Claim{Generator: "ext"}
	box, err := BoxBinding(128, uint64(len(payload)), payload.ContentHash())
	require.NoError(t, err)
	claim.Binding = box
	rec := claim.Record()

	v, err := Verify(NewUnverified(payload, rec), claim.Hash())
	require.NoError(t, err)
	assert.Equal(t, BindingBox, v.Record().Binding().Kind())

	_, err = Verify(NewUnverified(Bytes("other"), rec), claim.Hash())
	assert.Equal(t, RuleBindingMismatch, RuleID(err))
}

func TestCheckRecord(t *testing.T) {
	root := mustRoot(t, Int64(1), "g")
	ctx := NewTransformContext("g", &testSigner{})
	child, err := BuildTransformResult(Int64(2), root, "inc", DerivedFrom, nil, ctx)
	require.NoError(t, err)

	parents, err := CheckRecord(child)
	require.NoError(t, err)
	assert.Equal(t, []ClaimHash{root.ClaimHash()}, parents)

	_, err = CheckRecord(Verified[Int64]{})
	assert.Equal(t, RuleUnsealed, RuleID(err))
}

func TestParseClaimHash(t *testing.T) {
	v := mustRoot(t, Int64(5), "demo")
	got, err := ParseClaimHash(v.ClaimHash().String())
	require.NoError(t, err)
	assert.Equal(t, v.ClaimHash(), got)

	_, err = ParseClaimHash("abc")
	assert.Error(t, err)
}
