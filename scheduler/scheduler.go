package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/schmidtdse/josh/cmn"
)

// Scheduler drives many replicates across independent worker goroutines
// (§4.7's "Distributed replicates", §5's "across replicates: parallel").
// Replicates share no mutable state; only read-only descriptors, the
// handler registry, and intern caches are shared, matching the teacher's
// fs/mpather.JoggerGroup: one errgroup.Group fanning out over
// independent workers that share nothing but read-only inputs.
type Scheduler struct {
	maxParallel int
}

// New builds a Scheduler; maxParallel bounds concurrent replicate
// execution (config.MaxParallelReplicates, 0 = unbounded).
func New(maxParallel int) *Scheduler {
	return &Scheduler{maxParallel: maxParallel}
}

// RunAll runs every replicate to completion, returning the first error
// encountered (which also cancels the remaining replicates via the
// shared errgroup context, per golang.org/x/sync/errgroup's standard
// fail-fast behavior).
func (s *Scheduler) RunAll(ctx context.Context, replicates []*Replicate) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.maxParallel > 0 {
		g.SetLimit(s.maxParallel)
	}
	for _, rep := range replicates {
		rep := rep
		g.Go(func() error {
			return rep.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return cmn.Wrap(cmn.KindOf(err), err, "replicate run failed")
	}
	return nil
}
