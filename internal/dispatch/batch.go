package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// HandleBatch runs reqs with at most limit in flight and returns envelopes in
// request order. A failed request does not stop the others.
func (d *Dispatcher) HandleBatch(ctx context.Context, reqs []Request, limit int) []Envelope {
	out := make([]Envelope, len(reqs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			out[i] = d.Handle(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
