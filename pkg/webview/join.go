package webview

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunAll runs every loop on its own goroutine and waits for all of them.
// The first loop returning an error cancels the others.
func RunAll(ctx context.Context, loops ...*EventLoop) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		g.Go(func() error {
			return l.Run(gctx)
		})
	}
	return g.Wait()
}
