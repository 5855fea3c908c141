package pipeline

import (
	"context"

	"xdao.co/provchain/provenance"
)

// Composite2 combines two verified inputs of possibly different types.
// Input order is part of the output's identity.
type Composite2[A, B, O provenance.Payload] struct {
	name string
	rel  provenance.Relation
	fn   func(A, B) (O, error)
}

// TryCompose2 wraps a fallible two-input function. The relation defaults
// to ComposedFrom.
func TryCompose2[A, B, O provenance.Payload](name string, fn func(A, B) (O, error), opts ...Option) Composite2[A, B, O] {
	o := buildOptions(provenance.ComposedFrom, opts)
	return Composite2[A, B, O]{name: name, rel: o.rel, fn: fn}
}

// Compose2 wraps an infallible two-input function.
func Compose2[A, B, O provenance.Payload](name string, fn func(A, B) O, opts ...Option) Composite2[A, B, O] {
	return TryCompose2(name, func(a A, b B) (O, error) { return fn(a, b), nil }, opts...)
}

func (c Composite2[A, B, O]) Name() string { return c.name }

// Apply runs the composite inside the scope carried by ctx. The output
// lists a then b as ingredients.
func (c Composite2[A, B, O]) Apply(ctx context.Context, a provenance.Verified[A], b provenance.Verified[B]) (provenance.Verified[O], error) {
	s := acquire(ctx, c.name)
	defer s.release()

	ctx, span := startTransform(ctx, c.name, 2)
	defer span.End()

	out, err := func() (provenance.Verified[O], error) {
		if err := provenance.RequireVerified(a); err != nil {
			return provenance.Verified[O]{}, err
		}
		if err := provenance.RequireVerified(b); err != nil {
			return provenance.Verified[O]{}, err
		}
		payload, err := c.fn(a.Payload(), b.Payload())
		if err != nil {
			return provenance.Verified[O]{}, provenance.DerivationError(c.name, err)
		}
		return provenance.BuildCompositeResult(payload, []provenance.Ingredient{a, b}, c.name, c.rel, nil, s.tc)
	}()
	endTransform(ctx, span, c.name, err)
	return out, err
}

// CompositeN combines two or more verified inputs of one type.
type CompositeN[I, O provenance.Payload] struct {
	name string
	rel  provenance.Relation
	fn   func([]I) (O, error)
}

// TryComposeN wraps a fallible n-ary function. The relation defaults to
// ComposedFrom.
func TryComposeN[I, O provenance.Payload](name string, fn func([]I) (O, error), opts ...Option) CompositeN[I, O] {
	o := buildOptions(provenance.ComposedFrom, opts)
	return CompositeN[I, O]{name: name, rel: o.rel, fn: fn}
}

// ComposeN wraps an infallible n-ary function.
func ComposeN[I, O provenance.Payload](name string, fn func([]I) O, opts ...Option) CompositeN[I, O] {
	return TryComposeN(name, func(in []I) (O, error) { return fn(in), nil }, opts...)
}

func (c CompositeN[I, O]) Name() string { return c.name }

// Apply runs the composite over inputs, in order. Fewer than two inputs is
// a Derivation error.
func (c CompositeN[I, O]) Apply(ctx context.Context, inputs ...provenance.Verified[I]) (provenance.Verified[O], error) {
	s := acquire(ctx, c.name)
	defer s.release()

	ctx, span := startTransform(ctx, c.name, len(inputs))
	defer span.End()

	out, err := func() (provenance.Verified[O], error) {
		payloads := make([]I, len(inputs))
		ings := make([]provenance.Ingredient, len(inputs))
		for i, in := range inputs {
			if err := provenance.RequireVerified(in); err != nil {
				return provenance.Verified[O]{}, err
			}
			payloads[i] = in.Payload()
			ings[i] = in
		}
		if len(inputs) < 2 {
			// Let the result builder report the arity error.
			var zero O
			return provenance.BuildCompositeResult(zero, ings, c.name, c.rel, nil, s.tc)
		}
		payload, err := c.fn(payloads)
		if err != nil {
			return provenance.Verified[O]{}, provenance.DerivationError(c.name, err)
		}
		return provenance.BuildCompositeResult(payload, ings, c.name, c.rel, nil, s.tc)
	}()
	endTransform(ctx, span, c.name, err)
	return out, err
}
