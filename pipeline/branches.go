package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Branches runs each body on its own goroutine inside its own scope opened
// with cfg, and waits for all of them. The first error cancels the context
// passed to the remaining bodies and is returned.
//
// Scopes are never shared between branches. Combine branch results
// afterwards in a single scope, e.g. with a Composite2.
func Branches(ctx context.Context, cfg Config, bodies ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(Detach(ctx))
	for _, body := range bodies {
		g.Go(func() error {
			return Run(gctx, cfg, body)
		})
	}
	return g.Wait()
}
