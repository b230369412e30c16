package hmc

import (
	"time"
)

// Summary describes a finished run of a chain.
type Summary struct {
	Chain  string `json:"chain"`
	Kernel string `json:"kernel"`
	// WarmupIterations and Iterations count the iterations of this
	// run before and after the end of the adaptation.
	WarmupIterations int `json:"warmupIterations"`
	Iterations       int `json:"iterations"`
	Accepted         int `json:"accepted"`
	// MeanAcceptance is the average acceptance probability after the
	// warmup.
	MeanAcceptance    float64   `json:"meanAcceptance"`
	WarmupDivergences int       `json:"warmupDivergences"`
	Divergences       int       `json:"divergences"`
	DivergenceRate    float64   `json:"divergenceRate"`
	StepSize          float64   `json:"stepSize"`
	Metric            Metric    `json:"metric"`
	Variance          []float64 `json:"variance"`
	// HighDivergence is set if the divergence rate is above the
	// configured warning threshold.
	HighDivergence bool `json:"highDivergence,omitempty"`
	Interrupted    bool `json:"interrupted,omitempty"`
	// Time is the running time in seconds.
	Time float64 `json:"time"`

	sumAcceptance float64
}

// newSummary creates an empty summary for chain c.
func newSummary(c *Chain) *Summary {
	return &Summary{
		Chain:  c.state.ID,
		Kernel: c.kernel.Name(),
	}
}

// add accounts for a draw.
func (s *Summary) add(d *Draw) {
	if d.Warmup {
		s.WarmupIterations++
		if d.Stats.Divergent {
			s.WarmupDivergences++
		}
		return
	}
	s.Iterations++
	s.sumAcceptance += d.Stats.AcceptanceProbability
	if d.Stats.Accepted {
		s.Accepted++
	}
	if d.Stats.Divergent {
		s.Divergences++
	}
}

// finish computes the averages and reports the summary.
func (s *Summary) finish(c *Chain, start time.Time) {
	s.Time = time.Since(start).Seconds()
	s.StepSize = c.state.StepSize
	s.Metric = c.state.Preconditioner.Kind()
	s.Variance = c.state.Preconditioner.Variance()
	if s.Iterations > 0 {
		s.MeanAcceptance = s.sumAcceptance / float64(s.Iterations)
		s.DivergenceRate = float64(s.Divergences) / float64(s.Iterations)
	}

	log.Noticef("Chain %s: %d warmup and %d sampling iterations in %.2fs", s.Chain, s.WarmupIterations, s.Iterations, s.Time)
	log.Noticef("Mean acceptance probability: %.4f, accepted %d", s.MeanAcceptance, s.Accepted)
	log.Noticef("Divergences: %d (warmup: %d)", s.Divergences, s.WarmupDivergences)
	log.Noticef("Step size: %g, %v", s.StepSize, c.state.Preconditioner)
	if s.DivergenceRate > c.conf.DivergenceWarning {
		s.HighDivergence = true
		log.Warningf("Divergence rate %.2f%% is above %.2f%%, the samples may be biased; "+
			"consider increasing the target acceptance rate",
			100*s.DivergenceRate, 100*c.conf.DivergenceWarning)
	}
}
