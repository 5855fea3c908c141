package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"xdao.co/provchain/provenance"
)

// Option adjusts a transform or composite.
type Option func(*options)

type options struct {
	rel provenance.Relation
}

// WithRelation sets the relationship recorded for each input.
func WithRelation(r provenance.Relation) Option {
	return func(o *options) { o.rel = r }
}

func buildOptions(def provenance.Relation, opts []Option) options {
	o := options{rel: def}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Param selects one recordable parameter out of P and encodes it
// canonically. Only the hash of the encoding is recorded.
type Param[P any] struct {
	Name   string
	Encode func(P) []byte
}

// CanonicalParam selects a field that knows its own canonical encoding.
func CanonicalParam[P any](name string, field func(P) provenance.Canonical) Param[P] {
	return Param[P]{Name: name, Encode: func(p P) []byte { return field(p).CanonicalBytes() }}
}

// Self records the whole parameter value.
func Self[P provenance.Canonical](name string) Param[P] {
	return Param[P]{Name: name, Encode: func(p P) []byte { return p.CanonicalBytes() }}
}

func commit[P any](params []Param[P], p P) []provenance.ParamCommit {
	if len(params) == 0 {
		return nil
	}
	out := make([]provenance.ParamCommit, 0, len(params))
	for _, prm := range params {
		out = append(out, provenance.CommitBytes(prm.Name, prm.Encode(p)))
	}
	return out
}

// ParamTransform is a provenance-preserving wrapper around a function of
// one verified input and an auxiliary parameter value.
type ParamTransform[I, O provenance.Payload, P any] struct {
	name   string
	rel    provenance.Relation
	fn     func(I, P) (O, error)
	params []Param[P]
}

// TryMapWith wraps a fallible function taking a parameter. The relation
// defaults to DerivedFrom.
func TryMapWith[I, O provenance.Payload, P any](name string, fn func(I, P) (O, error), params []Param[P], opts ...Option) ParamTransform[I, O, P] {
	o := buildOptions(provenance.DerivedFrom, opts)
	return ParamTransform[I, O, P]{name: name, rel: o.rel, fn: fn, params: params}
}

// MapWith wraps an infallible function taking a parameter.
func MapWith[I, O provenance.Payload, P any](name string, fn func(I, P) O, params []Param[P], opts ...Option) ParamTransform[I, O, P] {
	return TryMapWith(name, func(in I, p P) (O, error) { return fn(in, p), nil }, params, opts...)
}

func (t ParamTransform[I, O, P]) Name() string { return t.name }

// Apply runs the function on in's payload and returns the output with a
// record listing in as its ingredient. It panics with a *ScopeError if ctx
// carries no open scope.
func (t ParamTransform[I, O, P]) Apply(ctx context.Context, in provenance.Verified[I], p P) (provenance.Verified[O], error) {
	s := acquire(ctx, t.name)
	defer s.release()

	ctx, span := startTransform(ctx, t.name, 1)
	defer span.End()

	out, err := t.run(s, in, p)
	endTransform(ctx, span, t.name, err)
	return out, err
}

func (t ParamTransform[I, O, P]) run(s *Scope, in provenance.Verified[I], p P) (provenance.Verified[O], error) {
	if err := provenance.RequireVerified(in); err != nil {
		return provenance.Verified[O]{}, err
	}
	out, err := t.fn(in.Payload(), p)
	if err != nil {
		return provenance.Verified[O]{}, provenance.DerivationError(t.name, err)
	}
	return provenance.BuildTransformResult(out, in, t.name, t.rel, commit(t.params, p), s.tc)
}

// Transform is a provenance-preserving wrapper around a function of one
// verified input.
type Transform[I, O provenance.Payload] struct {
	inner ParamTransform[I, O, struct{}]
}

// TryMap wraps a fallible function. The relation defaults to DerivedFrom.
func TryMap[I, O provenance.Payload](name string, fn func(I) (O, error), opts ...Option) Transform[I, O] {
	return Transform[I, O]{inner: TryMapWith(name, func(in I, _ struct{}) (O, error) { return fn(in) }, nil, opts...)}
}

// Map wraps an infallible function.
func Map[I, O provenance.Payload](name string, fn func(I) O, opts ...Option) Transform[I, O] {
	return TryMap(name, func(in I) (O, error) { return fn(in), nil }, opts...)
}

func (t Transform[I, O]) Name() string { return t.inner.name }

// Apply runs the transform inside the scope carried by ctx.
func (t Transform[I, O]) Apply(ctx context.Context, in provenance.Verified[I]) (provenance.Verified[O], error) {
	return t.inner.Apply(ctx, in, struct{}{})
}

// Source signs payload as a root value under the scope's generator.
func Source[T provenance.Payload](ctx context.Context, payload T) (provenance.Verified[T], error) {
	s := acquire(ctx, "Source")
	defer s.release()

	ctx, span := tracer.Start(ctx, "pipeline.source")
	defer span.End()

	tc := s.tc
	b := provenance.NewBuilder(payload).
		Generator(tc.Generator).
		RequireTimestamp(tc.RequireTimestamp).
		Journal(tc.Journal)
	for _, a := range tc.Assertions {
		b.AddAssertion(a)
	}
	v, err := b.Sign(tc.Signer)
	endTransform(ctx, span, "source", err)
	return v, err
}

func startTransform(ctx context.Context, name string, inputs int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "pipeline.transform", trace.WithAttributes(
		attribute.String("provchain.transform", name),
		attribute.Int("provchain.inputs", inputs),
	))
}

func endTransform(ctx context.Context, span trace.Span, name string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	countResult(ctx, name, err)
}
