package hmc

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/gonum/stat"
	"github.com/pkg/errors"
)

func TestStandardNormal(t *testing.T) {
	conf := testConfig()
	conf.Warmup = 0
	conf.StepSize = 0.5
	conf.Steps = 10
	conf.Metric = Unit
	c, err := NewChain(newGaussian(1), conf, []float64{0})
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, 5000)
	for i := range x {
		d, err := c.Step()
		if err != nil {
			t.Fatal(err)
		}
		if d.Warmup {
			t.Fatal("warmup draw without warmup")
		}
		x[i] = d.Theta[0]
	}
	mean, variance := stat.MeanVariance(x, nil)
	if math.Abs(mean) > 0.05 {
		t.Errorf("mean=%v, want 0", mean)
	}
	if math.Abs(variance-1) > 0.1 {
		t.Errorf("variance=%v, want 1", variance)
	}
	if c.Iteration() != len(x) {
		t.Errorf("iteration=%d, want %d", c.Iteration(), len(x))
	}
}

func TestDivergenceSafety(t *testing.T) {
	for _, domainError := range []bool{false, true} {
		conf := testConfig()
		conf.Warmup = 0
		conf.StepSize = 2.5
		conf.Metric = Unit
		c, err := NewChain(bounded(10, domainError), conf, []float64{9.9})
		if err != nil {
			t.Fatal(err)
		}
		divergent := 0
		for i := 0; i < 200; i++ {
			before := c.Position()
			d, err := c.Step()
			if err != nil {
				t.Fatalf("domain error=%v: %v", domainError, err)
			}
			if !d.Stats.Divergent {
				continue
			}
			divergent++
			if d.Stats.Accepted || d.Stats.AcceptanceProbability != 0 {
				t.Errorf("divergent transition accepted: %+v", d.Stats)
			}
			if d.Theta[0] != before[0] {
				t.Errorf("divergent transition moved from %v to %v", before[0], d.Theta[0])
			}
			if math.Abs(d.Theta[0]) > 10 {
				t.Errorf("position %v outside of the support", d.Theta[0])
			}
		}
		if divergent == 0 {
			t.Errorf("domain error=%v: no divergences", domainError)
		}
	}
}

func TestResume(t *testing.T) {
	for _, metric := range []Metric{Diagonal, Dense} {
		conf := testConfig()
		conf.Warmup = 200
		conf.Metric = metric
		target := newGaussian(1, 2)
		start := []float64{0.5, -0.5}

		full, err := NewChain(target, conf, start)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 400; i++ {
			if _, err := full.Step(); err != nil {
				t.Fatal(err)
			}
		}

		first, err := NewChain(target, conf, start)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 120; i++ {
			if _, err := first.Step(); err != nil {
				t.Fatal(err)
			}
		}
		s, err := first.State()
		if err != nil {
			t.Fatal(err)
		}
		b, err := s.Marshal()
		if err != nil {
			t.Fatal(err)
		}
		restored, err := UnmarshalChainState(b)
		if err != nil {
			t.Fatal(err)
		}
		second, err := RestoreChain(target, conf, restored)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 280; i++ {
			if _, err := second.Step(); err != nil {
				t.Fatal(err)
			}
		}

		if second.Iteration() != full.Iteration() {
			t.Errorf("%v: iteration %d, want %d", metric, second.Iteration(), full.Iteration())
		}
		if second.StepSize() != full.StepSize() {
			t.Errorf("%v: step size %v, want %v", metric, second.StepSize(), full.StepSize())
		}
		p1, p2 := full.Position(), second.Position()
		for i := range p1 {
			if p1[i] != p2[i] {
				t.Errorf("%v: position %v, want %v", metric, p2, p1)
				break
			}
		}
		v1, v2 := full.Preconditioner().Covariance(), second.Preconditioner().Covariance()
		for i := range v1 {
			if v1[i] != v2[i] {
				t.Errorf("%v: covariance %v, want %v", metric, v2, v1)
				break
			}
		}
	}
}

func TestNewChainErrors(t *testing.T) {
	conf := testConfig()
	if _, err := NewChain(newGaussian(1, 1), conf, []float64{0}); errors.Cause(err) != ErrDimensionMismatch {
		t.Errorf("dimension mismatch: %v", err)
	}
	if _, err := NewChain(bounded(1, false), conf, []float64{5}); errors.Cause(err) != ErrNonFiniteStart {
		t.Errorf("non-finite start: %v", err)
	}
	if _, err := NewChain(bounded(1, true), conf, []float64{5}); errors.Cause(err) != ErrNonFiniteStart {
		t.Errorf("domain error at start: %v", err)
	}
	bad := testConfig()
	bad.TargetAccept = 1.5
	if _, err := NewChain(newGaussian(1), bad, []float64{0}); errors.Cause(err) != ErrInvalidConfig {
		t.Errorf("invalid config: %v", err)
	}

	failing := TargetFunc{N: 1, F: func(theta []float64) (float64, []float64, error) {
		if theta[0] != 0 {
			return 0, nil, errors.New("oracle failure")
		}
		return 0, []float64{0}, nil
	}}
	conf.Warmup = 0
	c, err := NewChain(failing, conf, []float64{0})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Step(); err == nil {
		t.Error("oracle failure ignored")
	}
}

func TestAdaptationRecoversScale(t *testing.T) {
	conf := testConfig()
	conf.Warmup = 1000
	conf.Metric = Diagonal
	conf.Steps = 1
	c, err := NewChain(newGaussian(1, 10), conf, []float64{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	var draws []Draw
	for i := 0; i < 2000; i++ {
		d, err := c.Step()
		if err != nil {
			t.Fatal(err)
		}
		if i < conf.Warmup && !d.Warmup {
			t.Fatalf("iteration %d is not warmup", i)
		}
		if i >= conf.Warmup {
			if d.Warmup {
				t.Fatalf("iteration %d is warmup", i)
			}
			if d.Stats.StepSize != c.StepSize() {
				t.Fatal("step size changed after warmup")
			}
			draws = append(draws, d)
		}
	}
	v := c.Preconditioner().Variance()
	for i, want := range []float64{1, 100} {
		if v[i] < want/2 || v[i] > want*2 {
			t.Errorf("variance[%d]=%v, want %v", i, v[i], want)
		}
	}
	acc := 0.0
	for _, d := range draws {
		acc += d.Stats.AcceptanceProbability
	}
	acc /= float64(len(draws))
	if acc < 0.6 || acc > 0.97 {
		t.Errorf("mean acceptance %v, target %v", acc, conf.TargetAccept)
	}
	_, variance := stat.MeanVariance(Column(draws, 1), nil)
	if variance < 50 || variance > 200 {
		t.Errorf("sample variance %v, want 100", variance)
	}
}

func TestRunOutput(t *testing.T) {
	conf := testConfig()
	conf.Warmup = 100
	conf.ReportPeriod = 10
	c, err := NewChain(newGaussian(1), conf, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	out := make(chan Draw)
	c.SetOutput(out)
	var draws []Draw
	done := make(chan struct{})
	go func() {
		for d := range out {
			draws = append(draws, d)
		}
		close(done)
	}()
	sum, err := c.Run(context.Background(), 300)
	close(out)
	<-done
	if err != nil {
		t.Fatal(err)
	}
	if len(draws) != 300 {
		t.Fatalf("got %d draws, want 300", len(draws))
	}
	for i, d := range draws {
		if d.Iteration != i || d.Chain != c.ID() {
			t.Fatalf("draw %d: iteration %d, chain %s", i, d.Iteration, d.Chain)
		}
	}
	if sum.WarmupIterations != 100 || sum.Iterations != 200 {
		t.Errorf("summary: warmup=%d, iterations=%d", sum.WarmupIterations, sum.Iterations)
	}
	if sum.Interrupted {
		t.Error("run interrupted")
	}
}

// slowCheckpointer is always due and takes a while to save.
type slowCheckpointer struct {
	delay time.Duration
	iters []int
	final []bool
}

func (s *slowCheckpointer) Old() bool {
	return true
}

func (s *slowCheckpointer) Save(st *ChainState, final bool) error {
	time.Sleep(s.delay)
	s.iters = append(s.iters, st.Iteration)
	s.final = append(s.final, final)
	return nil
}

func TestRunCheckpoints(t *testing.T) {
	conf := testConfig()
	c, err := NewChain(newGaussian(1), conf, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	cp := &slowCheckpointer{delay: 20 * time.Millisecond}
	c.SetCheckpointer(cp)
	n := 200
	start := time.Now()
	if _, err := c.Run(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	// saving every iteration would take n*delay
	if el := time.Since(start); el > time.Duration(n/4)*cp.delay {
		t.Errorf("run took %v", el)
	}
	if len(cp.iters) < 2 || len(cp.iters) > n/4 {
		t.Fatalf("%d checkpoints saved", len(cp.iters))
	}
	last := len(cp.iters) - 1
	for i := 1; i < len(cp.iters); i++ {
		if cp.iters[i] < cp.iters[i-1] {
			t.Errorf("checkpoint iterations %v are not ordered", cp.iters)
		}
		if cp.final[i-1] {
			t.Errorf("checkpoint %d is final", i-1)
		}
	}
	if cp.iters[last] != n || !cp.final[last] {
		t.Errorf("last checkpoint at iteration %d, final=%v", cp.iters[last], cp.final[last])
	}
}

func TestSummaryDivergences(t *testing.T) {
	conf := testConfig()
	conf.Warmup = 0
	conf.StepSize = 2.5
	conf.Metric = Unit
	c, err := NewChain(bounded(10, false), conf, []float64{9.9})
	if err != nil {
		t.Fatal(err)
	}
	sum, err := c.Run(context.Background(), 200)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Iterations != 200 || sum.Divergences != sum.Iterations || sum.WarmupDivergences != 0 {
		t.Errorf("iterations=%d, divergences=%d, warmup divergences=%d",
			sum.Iterations, sum.Divergences, sum.WarmupDivergences)
	}
	if sum.DivergenceRate != 1 || sum.MeanAcceptance != 0 || sum.Accepted != 0 {
		t.Errorf("divergence rate=%v, mean acceptance=%v, accepted=%d",
			sum.DivergenceRate, sum.MeanAcceptance, sum.Accepted)
	}
	if !sum.HighDivergence {
		t.Error("no divergence warning")
	}

	// warmup divergences are counted separately
	conf = testConfig()
	conf.Warmup = 100
	conf.FindStepSize = false
	conf.StepSize = 2.5
	conf.DivergenceWarning = 1
	c, err = NewChain(bounded(10, false), conf, []float64{9.9})
	if err != nil {
		t.Fatal(err)
	}
	out := make(chan Draw, 200)
	c.SetOutput(out)
	sum, err = c.Run(context.Background(), 200)
	if err != nil {
		t.Fatal(err)
	}
	close(out)
	warmup, sampling := 0, 0
	for d := range out {
		if !d.Stats.Divergent {
			continue
		}
		if d.Warmup {
			warmup++
		} else {
			sampling++
		}
	}
	if warmup == 0 || sum.WarmupDivergences != warmup || sum.Divergences != sampling {
		t.Errorf("divergences: warmup %d (counted %d), sampling %d (counted %d)",
			sum.WarmupDivergences, warmup, sum.Divergences, sampling)
	}
	if sum.WarmupIterations != 100 || sum.Iterations != 100 {
		t.Errorf("warmup=%d, iterations=%d", sum.WarmupIterations, sum.Iterations)
	}
	if sum.HighDivergence {
		t.Errorf("divergence warning at rate %v", sum.DivergenceRate)
	}
}

func TestRunCancel(t *testing.T) {
	conf := testConfig()
	c, err := NewChain(newGaussian(1), conf, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := c.Run(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Interrupted || c.Iteration() != 0 {
		t.Errorf("interrupted=%v, iteration=%d", sum.Interrupted, c.Iteration())
	}
}

func TestRunChains(t *testing.T) {
	conf := testConfig()
	conf.Warmup = 300
	start := [][]float64{{-3, 3}, {0, 0}, {3, -3}, {1, 1}}
	chains, err := NewChains(func(int) Target { return correlated{0.5} }, conf, start)
	if err != nil {
		t.Fatal(err)
	}
	outs := make([]chan Draw, len(chains))
	for k, c := range chains {
		outs[k] = make(chan Draw, 800)
		c.SetOutput(outs[k])
	}
	summaries, err := RunChains(context.Background(), chains, 800)
	if err != nil {
		t.Fatal(err)
	}
	ids := make(map[string]bool)
	for k, s := range summaries {
		if s.WarmupIterations != 300 || s.Iterations != 500 {
			t.Errorf("chain %d: warmup=%d, iterations=%d", k, s.WarmupIterations, s.Iterations)
		}
		ids[s.Chain] = true
	}
	if len(ids) != len(chains) {
		t.Error("chains share an identifier")
	}

	draws := make([][]Draw, len(outs))
	for k, out := range outs {
		close(out)
		for d := range out {
			if !d.Warmup {
				draws[k] = append(draws[k], d)
			}
		}
		if len(draws[k]) != 500 {
			t.Fatalf("chain %d: got %d draws, want 500", k, len(draws[k]))
		}
	}
	for i := 0; i < 2; i++ {
		var x [][]float64
		for _, d := range draws {
			x = append(x, Column(d, i))
		}
		if r := Rhat(x); !(r < 1.1) {
			t.Errorf("dimension %d: Rhat=%v", i, r)
		}
	}
}

func TestCompleteChains(t *testing.T) {
	conf := testConfig()
	conf.Warmup = 20
	chains, err := NewChains(func(int) Target { return newGaussian(1) }, conf, [][]float64{{0}, {1}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 30; i++ {
		if _, err := chains[1].Step(); err != nil {
			t.Fatal(err)
		}
	}
	summaries, err := CompleteChains(context.Background(), chains, 50)
	if err != nil {
		t.Fatal(err)
	}
	for k, c := range chains {
		if c.Iteration() != 50 {
			t.Errorf("chain %d stopped at %d", k, c.Iteration())
		}
	}
	if n := summaries[1].WarmupIterations + summaries[1].Iterations; n != 20 {
		t.Errorf("restored chain ran %d iterations, want 20", n)
	}
}
