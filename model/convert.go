package model

import (
	"fmt"

	"xdao.co/provchain/compliance"
	"xdao.co/provchain/provenance"
)

func FromBinding(b provenance.AssetBinding) Binding {
	out := Binding{Kind: b.Kind().String(), Hash: b.Hash().String()}
	if b.Kind() == provenance.BindingBox {
		out.Offset, out.Length = b.Range()
	}
	return out
}

func (b Binding) ToBinding() (provenance.AssetBinding, error) {
	h, err := provenance.ParseContentHash(b.Hash)
	if err != nil {
		return provenance.AssetBinding{}, err
	}
	switch b.Kind {
	case "hash":
		return provenance.HashBinding(h), nil
	case "box":
		return provenance.BoxBinding(b.Offset, b.Length, h)
	default:
		return provenance.AssetBinding{}, fmt.Errorf("model: unknown binding kind %q", b.Kind)
	}
}

// FromEntry projects a journal entry. payloadCID may be empty.
func FromEntry(e provenance.Entry, payloadCID string) Manifest {
	m := Manifest{
		ManifestID:       e.ManifestID,
		ClaimHash:        e.ClaimHash.String(),
		Generator:        e.Claim.Generator,
		Binding:          FromBinding(e.Claim.Binding),
		Ingredients:      make([]Ingredient, 0, len(e.Claim.Ingredients)),
		Assertions:       make([]Assertion, 0, len(e.Claim.Assertions)),
		MediaType:        e.MediaType,
		PayloadCID:       payloadCID,
		Signature:        e.Signature,
		CertificateChain: e.CertificateChain,
		Timestamp:        e.Timestamp,
	}
	for _, ing := range e.Claim.Ingredients {
		m.Ingredients = append(m.Ingredients, Ingredient{
			ClaimHash: ing.ClaimHash.String(),
			Binding:   FromBinding(ing.Binding),
			Relation:  ing.Relation.String(),
		})
	}
	for _, a := range e.Claim.Assertions {
		m.Assertions = append(m.Assertions, Assertion{Label: a.Label, MimeType: a.MimeType, Data: a.Data})
	}
	return m
}

// ToEntry is the inverse of FromEntry. The payload bytes are not part of a
// Manifest and are left nil.
func (m Manifest) ToEntry() (provenance.Entry, error) {
	var e provenance.Entry
	h, err := provenance.ParseClaimHash(m.ClaimHash)
	if err != nil {
		return e, err
	}
	binding, err := m.Binding.ToBinding()
	if err != nil {
		return e, err
	}
	claim := provenance.Claim{Generator: m.Generator, Binding: binding}
	for _, ing := range m.Ingredients {
		ref, err := ing.ToRef()
		if err != nil {
			return e, err
		}
		claim.Ingredients = append(claim.Ingredients, ref)
	}
	for _, a := range m.Assertions {
		claim.Assertions = append(claim.Assertions, provenance.CustomAssertion{Label: a.Label, Data: a.Data, MimeType: a.MimeType})
	}
	return provenance.Entry{
		Claim:            claim,
		ClaimHash:        h,
		ManifestID:       m.ManifestID,
		MediaType:        m.MediaType,
		Signature:        m.Signature,
		CertificateChain: m.CertificateChain,
		Timestamp:        m.Timestamp,
	}, nil
}

func FromCompliance(m compliance.ComplianceMode) ComplianceMode {
	if m == compliance.Strict {
		return ComplianceStrict
	}
	return CompliancePermissive
}

func (m ComplianceMode) Mode() (compliance.ComplianceMode, error) {
	return compliance.Parse(string(m))
}

// ToRef parses an ingredient back into its provenance form.
func (i Ingredient) ToRef() (provenance.IngredientRef, error) {
	h, err := provenance.ParseClaimHash(i.ClaimHash)
	if err != nil {
		return provenance.IngredientRef{}, err
	}
	b, err := i.Binding.ToBinding()
	if err != nil {
		return provenance.IngredientRef{}, err
	}
	rel, err := provenance.ParseRelation(i.Relation)
	if err != nil {
		return provenance.IngredientRef{}, err
	}
	return provenance.IngredientRef{ClaimHash: h, Binding: b, Relation: rel}, nil
}
