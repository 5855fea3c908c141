package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// TransformAssertionLabel labels the assertion recording a transform's name
// and parameter commits.
const TransformAssertionLabel = "c2pa.transform"

// CustomAssertion is metadata attached to a claim at sign time. Label and
// Data take part in the claim hash; MimeType does not.
type CustomAssertion struct {
	Label    string
	Data     []byte
	MimeType string
}

// JSONAssertion encodes v as RFC 8785 canonical JSON.
func JSONAssertion(label string, v any) (CustomAssertion, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return CustomAssertion{}, fmt.Errorf("assertion %s: %w", label, err)
	}
	return RawJSONAssertion(label, raw)
}

// RawJSONAssertion canonicalizes already encoded JSON.
func RawJSONAssertion(label string, raw []byte) (CustomAssertion, error) {
	canon, err := jcs.Transform(raw)
	if err != nil {
		return CustomAssertion{}, fmt.Errorf("assertion %s: %w", label, err)
	}
	return CustomAssertion{Label: label, Data: canon, MimeType: "application/json"}, nil
}

type transformBody struct {
	ParamCommits map[string]string `json:"param_commits"`
	Transform    string            `json:"transform"`
}

// TransformAssertion records a transform name and its parameter commits.
// Only commit hashes are written, never parameter values. ok is false when
// there is nothing to record. Commit names must be unique; a repeated name
// is a Derivation error (PROV-DERIVE-003).
func TransformAssertion(name string, commits []ParamCommit) (a CustomAssertion, ok bool, err error) {
	if name == "" && len(commits) == 0 {
		return CustomAssertion{}, false, nil
	}
	body := transformBody{ParamCommits: make(map[string]string, len(commits)), Transform: name}
	for _, c := range commits {
		if _, dup := body.ParamCommits[c.Name]; dup {
			return CustomAssertion{}, false, newError(KindDerivation, RuleDuplicateParam,
				fmt.Sprintf("transform %s: parameter %q committed twice", name, c.Name))
		}
		body.ParamCommits[c.Name] = hex.EncodeToString(c.Hash[:])
	}
	a, err = JSONAssertion(TransformAssertionLabel, body)
	if err != nil {
		return CustomAssertion{}, false, err
	}
	return a, true, nil
}

// Claim is the statement made by one signing event. Its hash identifies the
// resulting record.
type Claim struct {
	Generator   string
	Binding     AssetBinding
	Ingredients []IngredientRef
	Assertions  []CustomAssertion
}

// Bytes returns the claim preimage, in this order:
//
//	generator label
//	binding content hash (both binding kinds)
//	ingredient claim hashes, in insertion order
//	label ∥ data for each assertion, in insertion order
//
// Relations and mime types are not part of the preimage.
func (c Claim) Bytes() []byte {
	n := len(c.Generator) + HashSize + HashSize*len(c.Ingredients)
	for _, a := range c.Assertions {
		n += len(a.Label) + len(a.Data)
	}
	out := make([]byte, 0, n)
	out = append(out, c.Generator...)
	h := c.Binding.Hash()
	out = append(out, h[:]...)
	for _, ing := range c.Ingredients {
		out = append(out, ing.ClaimHash[:]...)
	}
	for _, a := range c.Assertions {
		out = append(out, a.Label...)
		out = append(out, a.Data...)
	}
	return out
}

// Hash returns the claim hash.
func (c Claim) Hash() ClaimHash {
	return ClaimHash(sha256.Sum256(c.Bytes()))
}

// Record builds the record this claim identifies.
func (c Claim) Record() Record {
	return NewRecord(c.Hash(), c.Binding, c.Ingredients)
}
