package main

import (
	"context"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"bitbucket.org/Davydov/gohmc/checkpoint"
	"bitbucket.org/Davydov/gohmc/dist"
	"bitbucket.org/Davydov/gohmc/hmc"
	"bitbucket.org/Davydov/gohmc/optimize"
)

// targetKey stores the target description in the checkpoint database.
var targetKey = []byte("target")

// splitNames splits a comma-separated list.
func splitNames(s string) (names []string) {
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return
}

// newTarget creates a target instance. Every chain gets its own
// instance, so that the targets can keep buffers.
func newTarget(full []float64) (hmc.NamedTarget, error) {
	t, err := dist.New(*targetDesc, *dim)
	if err != nil || *space == "" {
		return t, err
	}
	return hmc.Subspace(t, hmc.NewSpace(splitNames(*space)...), full)
}

// startPoints returns the starting positions of the chains in the
// (possibly restricted) target space and the full starting position.
func startPoints(t hmc.NamedTarget, full []float64) ([][]float64, error) {
	theta := full
	if st, ok := t.(*hmc.SubTarget); ok {
		theta = st.Restrict(full)
	}
	starts := make([][]float64, *nChains)

	if *start == "" && *initM == "random" {
		log.Info("Using uniform random starting points")
		rng := rand.New(rand.NewSource(*seed))
		for k := range starts {
			starts[k] = make([]float64, len(theta))
			for i := range starts[k] {
				starts[k][i] = 4*rng.Float64() - 2
			}
		}
		return starts, nil
	}

	var opt optimize.Optimizer
	if *start == "" && *initM == "map" {
		log.Info("Searching for the maximum of the log density")
		opt = optimize.NewLBFGSB()
	} else {
		opt = optimize.NewNone()
	}
	opt.SetTarget(t, theta)
	opt.WatchSignals(os.Interrupt, syscall.SIGTERM)
	opt.SetOutput(nil)
	opt.Run(0)
	if math.IsInf(opt.GetMaxL(), -1) || math.IsNaN(opt.GetMaxL()) {
		return nil, errors.Wrapf(hmc.ErrNonFiniteStart, "log density at the start is %v", opt.GetMaxL())
	}
	theta = opt.GetMaxLParameters()
	log.Infof("Starting from L=%v", opt.GetMaxL())
	for k := range starts {
		starts[k] = theta
	}
	return starts, nil
}

// fullStart returns the starting position of all the variables.
func fullStart() ([]float64, error) {
	t, err := dist.New(*targetDesc, *dim)
	if err != nil {
		return nil, err
	}
	if *start == "" {
		return make([]float64, t.Dim()), nil
	}
	x, err := optimize.ReadFloats(*start)
	if err != nil {
		return nil, err
	}
	if len(x) != t.Dim() {
		return nil, errors.Wrapf(hmc.ErrDimensionMismatch, "start has %d values, target has %d dimensions", len(x), t.Dim())
	}
	return x, nil
}

// openCheckpoints opens the checkpoint database and loads the saved
// chain states if resuming.
func openCheckpoints(n int) (*bolt.DB, []*hmc.ChainState, error) {
	if *checkpointF == "" {
		if *resume {
			return nil, nil, errors.New("cannot resume without a checkpoint database")
		}
		return nil, nil, nil
	}
	db, err := checkpoint.Open(*checkpointF)
	if err != nil {
		return nil, nil, err
	}
	states := make([]*hmc.ChainState, n)
	if *resume {
		saved, err := checkpoint.LoadData(db, targetKey)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if saved != nil && string(saved) != *targetDesc {
			log.Warningf("Checkpoint was created for target %q, using %q", saved, *targetDesc)
		}
		for k := range states {
			data, err := checkpoint.NewCheckpointIO(db, checkpoint.ChainKey(k), *checkpointPeriod).Load()
			if err != nil {
				db.Close()
				return nil, nil, err
			}
			if data != nil {
				states[k] = data.State
			}
		}
	}
	if err := checkpoint.SaveData(db, targetKey, []byte(*targetDesc)); err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, "cannot write checkpoint database")
	}
	return db, states, nil
}

// run builds the chains, samples and returns the run summary.
func run(conf *hmc.Config) (*RunSummary, error) {
	if *nChains < 1 {
		return nil, errors.Errorf("number of chains=%d should be positive", *nChains)
	}
	full, err := fullStart()
	if err != nil {
		return nil, err
	}
	targets := make([]hmc.NamedTarget, *nChains)
	for k := range targets {
		if targets[k], err = newTarget(full); err != nil {
			return nil, err
		}
	}
	names := targets[0].Names()
	log.Infof("Target %s, variables: %s", *targetDesc, strings.Join(names, ", "))

	starts, err := startPoints(targets[0], full)
	if err != nil {
		return nil, err
	}

	chains, err := hmc.NewChains(func(k int) hmc.Target { return targets[k] }, conf, starts)
	if err != nil {
		return nil, err
	}

	db, states, err := openCheckpoints(len(chains))
	if err != nil {
		return nil, err
	}
	if db != nil {
		defer db.Close()
		for k := range chains {
			if states[k] != nil {
				if chains[k], err = hmc.RestoreChain(targets[k], conf, states[k]); err != nil {
					return nil, errors.Wrapf(err, "chain %d", k)
				}
			}
			chains[k].SetCheckpointer(checkpoint.NewCheckpointIO(db, checkpoint.ChainKey(k), *checkpointPeriod))
		}
	}

	f := os.Stdout
	if *outF != "" {
		f, err = os.Create(*outF)
		if err != nil {
			return nil, errors.Wrap(err, "cannot create output file")
		}
		defer f.Close()
	}

	col := newCollector(f, names, chains)
	out := make(chan hmc.Draw, 100)
	for _, c := range chains {
		c.SetOutput(out)
	}
	done := make(chan struct{})
	go col.run(out, done)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sums, err := hmc.CompleteChains(ctx, chains, conf.Warmup+conf.Iterations)
	close(out)
	<-done
	if err != nil {
		return nil, err
	}
	if err := col.flush(); err != nil {
		log.Error("Error writing draws:", err)
	}

	summary := &RunSummary{
		Target:    *targetDesc,
		Config:    conf,
		Chains:    sums,
		Variables: summarize(names, col.draws),
	}
	if tr, ok := targets[0].(dist.Transformer); ok {
		summary.Variables = append(summary.Variables, summarize(tr.TransformedNames(), transformDraws(tr, col.draws))...)
	}
	for _, v := range summary.Variables {
		log.Noticef("%s: mean=%.4f (%.4f, %.4f), sd=%.4f, ess=%.1f, rhat=%.3f", v.Name, v.Mean, v.Lower, v.Upper, v.SD, v.ESS, v.Rhat)
	}

	if *plotF != "" {
		if err := tracePlot(*plotF, names, col.draws); err != nil {
			log.Error("Error creating trace plot:", err)
		}
	}
	return summary, nil
}
