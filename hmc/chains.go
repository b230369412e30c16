package hmc

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// NewChains creates n independent chains. Chain k is created by
// newTarget(k), starts at start[k] and uses seed conf.Seed+k.
func NewChains(newTarget func(k int) Target, conf *Config, start [][]float64) ([]*Chain, error) {
	chains := make([]*Chain, len(start))
	for k := range start {
		kconf := *conf
		kconf.Seed = conf.Seed + int64(k)
		c, err := NewChain(newTarget(k), &kconf, start[k])
		if err != nil {
			return nil, err
		}
		chains[k] = c
	}
	return chains, nil
}

// RunChains runs iterations of every chain in parallel. The chains
// share nothing, so targets must be independent too. The first error
// cancels the remaining chains.
func RunChains(ctx context.Context, chains []*Chain, iterations int) ([]*Summary, error) {
	return runAll(ctx, chains, func(*Chain) int { return iterations })
}

// CompleteChains runs every chain in parallel until it reaches total
// iterations. It is used to finish restored chains which were saved
// at different iterations.
func CompleteChains(ctx context.Context, chains []*Chain, total int) ([]*Summary, error) {
	return runAll(ctx, chains, func(c *Chain) int {
		if n := total - c.Iteration(); n > 0 {
			return n
		}
		return 0
	})
}

func runAll(ctx context.Context, chains []*Chain, iterations func(*Chain) int) ([]*Summary, error) {
	summaries := make([]*Summary, len(chains))
	g, ctx := errgroup.WithContext(ctx)
	for k, c := range chains {
		k, c := k, c
		g.Go(func() error {
			s, err := c.Run(ctx, iterations(c))
			summaries[k] = s
			return err
		})
	}
	err := g.Wait()
	return summaries, err
}
