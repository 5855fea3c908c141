// Package pipeline scopes a run of provenance-preserving transforms.
//
// Run opens a scope and passes it down in a context.Context. Transforms
// built with Map, MapWith, Compose2, and friends look the scope up, record
// their name and parameter commits in it, and sign their output under the
// scope's generator. Calling a transform outside a scope, or opening a scope
// inside another, panics with a *ScopeError.
//
//	double := pipeline.Map("double", func(n provenance.Int64) provenance.Int64 { return n * 2 })
//	err := pipeline.Run(ctx, pipeline.Config{Generator: "demo", Signer: s}, func(ctx context.Context) error {
//		start, err := pipeline.Source(ctx, provenance.Int64(5))
//		if err != nil {
//			return err
//		}
//		_, err = double.Apply(ctx, start)
//		return err
//	})
package pipeline
