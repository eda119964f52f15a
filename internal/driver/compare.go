package driver

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// CompareVariant names one simulation to run as part of a Compare batch.
type CompareVariant struct {
	Label  string
	Driver *SimulationDriver
}

// CompareResult pairs a variant's label with its outcome.
type CompareResult struct {
	Label  string
	Bundle *ResultBundle
	Err    error
}

// Compare runs every variant concurrently and returns one CompareResult
// per variant, in input order. Per spec.md §5, this is safe only because
// each SimulationDriver owns its own Portfolio/TaxLedger/Rebalancer state
// and PriceSource implementations are required to be safe for concurrent
// reads.
func Compare(ctx context.Context, variants []CompareVariant) []CompareResult {
	results := make([]CompareResult, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range variants {
		i, v := i, v
		g.Go(func() error {
			bundle, err := v.Driver.Run(gctx)
			results[i] = CompareResult{Label: v.Label, Bundle: bundle, Err: err}
			return nil // collect all errors per-variant rather than aborting the whole batch
		})
	}
	_ = g.Wait()
	return results
}
