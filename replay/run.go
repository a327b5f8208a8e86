package replay

import (
	"context"
	"hash/fnv"

	"golang.org/x/sync/errgroup"

	"github.com/dumbCodesOnly/SigV0.01/feed"
	"github.com/dumbCodesOnly/SigV0.01/market"
)

// Run replays a historical source to the end. Cancellation is checked
// between bars only, so a position is never left half-updated. Engine
// state carries over between calls: running two halves of a series gives
// the same result as running it whole.
func (e *Engine) Run(ctx context.Context, src feed.Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		bar, ok, err := src.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := e.Step(bar); err != nil {
			return err
		}
	}
}

// Live consumes bars pushed by a live feed until the channel closes or ctx
// is done.
func (e *Engine) Live(ctx context.Context, bars <-chan market.Bar) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar, ok := <-bars:
			if !ok {
				return nil
			}
			if err := e.Step(bar); err != nil {
				return err
			}
		}
	}
}

// RunParallel loads the source and replays it with instruments partitioned
// across workers. Each instrument belongs to exactly one worker, so its bars
// keep their order. Trades come out identical to Run.
func (e *Engine) RunParallel(ctx context.Context, src feed.Source, workers int) error {
	if workers <= 1 {
		return e.Run(ctx, src)
	}
	bars, err := feed.ReadAll(src)
	if err != nil {
		return err
	}

	parts := make([][]market.Bar, workers)
	for _, b := range bars {
		i := shard(b.Instrument, workers)
		parts[i] = append(parts[i], b)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, part := range parts {
		if len(part) == 0 {
			continue
		}
		part := part
		g.Go(func() error {
			for _, b := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := e.Step(b); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func shard(instrument string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(instrument))
	return int(h.Sum32() % uint32(n))
}
