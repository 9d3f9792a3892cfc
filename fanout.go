package wipecore

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WipeConcurrently runs each Options entry as an independent wipe: every
// run owns its own I/O handle, buffer pool and checkpoint row, sharing
// only the process-wide Secure RNG singleton. The first run to fail
// cancels the shared context, so siblings stop at their next checkpoint
// boundary rather than running to completion. Reports are returned in
// the same order as opts, regardless of which run finished first.
func WipeConcurrently(ctx context.Context, opts []Options) ([]WipeReport, error) {
	reports := make([]WipeReport, len(opts))
	g, gctx := errgroup.WithContext(ctx)
	for i := range opts {
		g.Go(func() error {
			report, err := Wipe(gctx, opts[i])
			reports[i] = report
			return err
		})
	}
	return reports, g.Wait()
}

// WipeRAIDMembers wipes every member drive of a RAID array concurrently,
// joining all child runs before returning. The fan-out shape is
// identical to WipeConcurrently; this exists as a distinctly named entry
// point so a RAID wipe's intent is explicit at the call site.
func WipeRAIDMembers(ctx context.Context, members []Options) ([]WipeReport, error) {
	return WipeConcurrently(ctx, members)
}
