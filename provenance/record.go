package provenance

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Relation describes how an ingredient relates to the record that lists it.
// It is descriptive only and does not take part in claim hashing.
type Relation int

const (
	ParentOf Relation = iota
	ComponentOf
	InputTo
	DerivedFrom
	ComposedFrom
)

var relationNames = [...]string{
	ParentOf:     "parentOf",
	ComponentOf:  "componentOf",
	InputTo:      "inputTo",
	DerivedFrom:  "derivedFrom",
	ComposedFrom: "composedFrom",
}

func (r Relation) String() string {
	if r < 0 || int(r) >= len(relationNames) {
		return fmt.Sprintf("Relation(%d)", int(r))
	}
	return relationNames[r]
}

// ParseRelation is the inverse of Relation.String.
func ParseRelation(s string) (Relation, error) {
	for i, name := range relationNames {
		if name == s {
			return Relation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown relation %q", s)
}

// BindingKind selects how an AssetBinding covers its payload.
type BindingKind int

const (
	// BindingHash binds the whole payload.
	BindingHash BindingKind = iota
	// BindingBox binds a byte range embedded in a larger asset.
	BindingBox
)

func (k BindingKind) String() string {
	switch k {
	case BindingHash:
		return "hash"
	case BindingBox:
		return "box"
	default:
		return fmt.Sprintf("BindingKind(%d)", int(k))
	}
}

// AssetBinding ties a record to the bytes of its payload.
type AssetBinding struct {
	kind   BindingKind
	offset uint64
	length uint64
	hash   ContentHash
}

// HashBinding binds the whole payload by its content hash.
func HashBinding(h ContentHash) AssetBinding {
	return AssetBinding{kind: BindingHash, hash: h}
}

// BoxBinding binds length bytes at offset. The range must be non-empty and
// must not overflow.
func BoxBinding(offset, length uint64, h ContentHash) (AssetBinding, error) {
	if length == 0 {
		return AssetBinding{}, newError(KindBinding, RuleBoxRange, "box binding length must be non-zero")
	}
	if offset > math.MaxUint64-length {
		return AssetBinding{}, newError(KindBinding, RuleBoxRange,
			fmt.Sprintf("box binding range overflows: offset=%d length=%d", offset, length))
	}
	return AssetBinding{kind: BindingBox, offset: offset, length: length, hash: h}, nil
}

func (b AssetBinding) Kind() BindingKind { return b.kind }

// Hash returns the bound content hash (the embedded hash for box bindings).
func (b AssetBinding) Hash() ContentHash { return b.hash }

// Range returns the box range. It is (0, 0) for hash bindings.
func (b AssetBinding) Range() (offset, length uint64) { return b.offset, b.length }

func (b AssetBinding) String() string {
	if b.kind == BindingBox {
		return fmt.Sprintf("box[%d+%d]:%s", b.offset, b.length, b.hash.Short())
	}
	return "hash:" + b.hash.Short()
}

// IngredientRef denotes a parent record by claim hash. It never points at
// the parent itself, so records form a DAG that only points backwards.
type IngredientRef struct {
	ClaimHash ClaimHash
	Binding   AssetBinding
	Relation  Relation
}

// Record is the immutable provenance of a single value.
type Record struct {
	manifestID  string
	claimHash   ClaimHash
	binding     AssetBinding
	ingredients []IngredientRef
}

// NewRecord assembles a record for externally sourced data, typically
// before passing it to Verify. The manifest id is derived from claim.
func NewRecord(claim ClaimHash, binding AssetBinding, ingredients []IngredientRef) Record {
	return Record{
		manifestID:  ManifestID(claim),
		claimHash:   claim,
		binding:     binding,
		ingredients: append([]IngredientRef(nil), ingredients...),
	}
}

// ManifestID is presentational; compare records by ClaimHash.
func (r Record) ManifestID() string    { return r.manifestID }
func (r Record) ClaimHash() ClaimHash  { return r.claimHash }
func (r Record) Binding() AssetBinding { return r.binding }
func (r Record) IsRoot() bool          { return len(r.ingredients) == 0 }
func (r Record) NumIngredients() int   { return len(r.ingredients) }

// Ingredient returns the i-th ingredient in insertion order.
func (r Record) Ingredient(i int) IngredientRef { return r.ingredients[i] }

// Ingredients returns a copy of the ordered ingredient list.
func (r Record) Ingredients() []IngredientRef {
	return append([]IngredientRef(nil), r.ingredients...)
}

// ManifestID formats the first 16 bytes of h as a UUID URN.
func ManifestID(h ClaimHash) string {
	id, err := uuid.FromBytes(h[:16])
	if err != nil {
		// FromBytes only fails on a length other than 16.
		panic(err)
	}
	return id.URN()
}
