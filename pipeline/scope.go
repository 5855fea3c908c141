package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"xdao.co/provchain/provenance"
)

// ScopeCode names a scope misuse.
type ScopeCode int

const (
	// ScopeNested: Run was called while the context already had an open scope.
	ScopeNested ScopeCode = iota + 1
	// ScopeMissing: a transform was called without an open scope.
	ScopeMissing
	// ScopeClosed: a transform was called with a scope whose Run returned.
	ScopeClosed
	// ScopeBusy: a transform was called while another call held the scope,
	// either from inside that call's function or from another goroutine.
	ScopeBusy
)

func (c ScopeCode) String() string {
	switch c {
	case ScopeNested:
		return "nested"
	case ScopeMissing:
		return "missing"
	case ScopeClosed:
		return "closed"
	case ScopeBusy:
		return "busy"
	default:
		return fmt.Sprintf("ScopeCode(%d)", int(c))
	}
}

// ScopeError is the panic value for scope misuse. Misuse means the call
// graph is wrong, so it is never returned as an error; recover and check for
// *ScopeError to tell it apart from ordinary failures.
type ScopeError struct {
	Code ScopeCode
	Op   string
	// Holder is the operation holding the scope, for ScopeBusy.
	Holder string
}

func (e *ScopeError) Error() string {
	switch e.Code {
	case ScopeNested:
		return "pipeline: pipeline cannot be nested"
	case ScopeMissing:
		return fmt.Sprintf("pipeline: %s called outside a pipeline scope", e.Op)
	case ScopeClosed:
		return fmt.Sprintf("pipeline: %s called after its pipeline scope closed", e.Op)
	case ScopeBusy:
		return fmt.Sprintf("pipeline: %s called while %s holds the pipeline scope (re-entrant or concurrent use)", e.Op, e.Holder)
	default:
		return fmt.Sprintf("pipeline: scope misuse (%s) in %s", e.Code, e.Op)
	}
}

// Config holds the run-level settings of a scope.
type Config struct {
	Generator        string
	Signer           provenance.Signer
	Journal          provenance.Journal
	RequireTimestamp bool
	// Assertions are attached to every manifest built in the scope.
	Assertions []provenance.CustomAssertion
}

// Scope is the single mutable metadata slot of one pipeline run.
type Scope struct {
	tc     *provenance.TransformContext
	closed atomic.Bool
	holder atomic.Pointer[string]
}

type scopeKey struct{}

// Run opens a scope, runs body with a context carrying it, and closes the
// scope when body returns or panics. Run panics with ScopeNested if ctx
// already carries an open scope; use Detach to start an independent run.
func Run(ctx context.Context, cfg Config, body func(ctx context.Context) error) (err error) {
	if s := lookup(ctx); s != nil && !s.closed.Load() {
		panic(&ScopeError{Code: ScopeNested, Op: "Run"})
	}

	tc := provenance.NewTransformContext(cfg.Generator, cfg.Signer)
	tc.Journal = cfg.Journal
	tc.RequireTimestamp = cfg.RequireTimestamp
	tc.Assertions = append([]provenance.CustomAssertion(nil), cfg.Assertions...)
	s := &Scope{tc: tc}

	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("provchain.generator", tc.Generator)))
	defer func() {
		s.closed.Store(true)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return body(context.WithValue(ctx, scopeKey{}, s))
}

// Detach returns ctx without its scope, for handing to another execution
// unit that will open its own.
func Detach(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeKey{}, (*Scope)(nil))
}

// FromContext returns the open scope carried by ctx.
func FromContext(ctx context.Context) (*Scope, bool) {
	s := lookup(ctx)
	if s == nil || s.closed.Load() {
		return nil, false
	}
	return s, true
}

// Active reports whether ctx carries an open scope.
func Active(ctx context.Context) bool {
	_, ok := FromContext(ctx)
	return ok
}

// Clear resets the transform name and commits of the scope in ctx.
func Clear(ctx context.Context) {
	s := acquire(ctx, "Clear")
	defer s.release()
	s.tc.ClearTransformMetadata()
}

// TransformContext exposes the scope's metadata. It must not be used after
// the scope closes or from another goroutine.
func (s *Scope) TransformContext() *provenance.TransformContext { return s.tc }

func lookup(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// acquire returns the scope in ctx marked busy, or panics with the
// matching ScopeError.
func acquire(ctx context.Context, op string) *Scope {
	s := lookup(ctx)
	if s == nil {
		panic(&ScopeError{Code: ScopeMissing, Op: op})
	}
	if s.closed.Load() {
		panic(&ScopeError{Code: ScopeClosed, Op: op})
	}
	if !s.holder.CompareAndSwap(nil, &op) {
		holder := ""
		if h := s.holder.Load(); h != nil {
			holder = *h
		}
		panic(&ScopeError{Code: ScopeBusy, Op: op, Holder: holder})
	}
	return s
}

func (s *Scope) release() { s.holder.Store(nil) }
