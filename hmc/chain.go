package hmc

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

// log is the global logging variable.
var log = logging.MustGetLogger("hmc")

// Draw is the output of a single iteration.
type Draw struct {
	Chain     string    `json:"chain"`
	Iteration int       `json:"iteration"`
	Theta     []float64 `json:"theta"`
	LogP      float64   `json:"logp"`
	Stats     Stats     `json:"stats"`
	Warmup    bool      `json:"warmup"`
}

// Chain is a single Markov chain. Iterations are strictly sequential.
type Chain struct {
	target   Target
	conf     *Config
	kernel   Kernel
	state    *ChainState
	src      *source
	rng      *rand.Rand
	momentum []float64
	out      chan<- Draw
	cp       Checkpointer
}

// Checkpointer persists the chain state during a run. Save may be
// called from another goroutine, but never concurrently with Old.
type Checkpointer interface {
	// Old returns true if the last saved state is too old.
	Old() bool
	Save(s *ChainState, final bool) error
}

// NewChain creates a chain starting at theta.
func NewChain(t Target, conf *Config, theta []float64) (*Chain, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	d := t.Dim()
	if len(theta) != d {
		return nil, errors.Wrapf(ErrDimensionMismatch, "starting point has %d values, target has %d dimensions", len(theta), d)
	}
	pt := newPoint(d)
	ok, err := evaluate(t, theta, pt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNonFiniteStart, "theta=%v", theta)
	}

	pc := NewIdentityPreconditioner(conf.Metric, d)

	s := &ChainState{
		ID:             uuid.New().String(),
		Point:          *pt,
		StepSize:       conf.StepSize,
		Preconditioner: pc,
		RNG:            RNGState{Seed: conf.Seed},
	}
	if conf.Warmup > 0 {
		s.Adaptation = NewAdaptation(conf, d)
	}
	return newChain(t, conf, s)
}

// RestoreChain continues a chain from a saved state.
func RestoreChain(t Target, conf *Config, s *ChainState) (*Chain, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	if t.Dim() != len(s.Point.Theta) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "saved state has %d dimensions, target has %d", len(s.Point.Theta), t.Dim())
	}
	s, err := s.Clone()
	if err != nil {
		return nil, err
	}
	log.Infof("Restoring chain %s at iteration %d", s.ID, s.Iteration)
	return newChain(t, conf, s)
}

// newChain wires the runtime objects of a chain around its state.
func newChain(t Target, conf *Config, s *ChainState) (*Chain, error) {
	k, err := conf.NewKernel()
	if err != nil {
		return nil, err
	}
	c := &Chain{
		target:   t,
		conf:     conf,
		kernel:   k,
		state:    s,
		src:      newSource(s.RNG),
		momentum: make([]float64, len(s.Point.Theta)),
	}
	c.rng = rand.New(c.src)
	return c, nil
}

// SetOutput sets the channel receiving the draws.
func (c *Chain) SetOutput(out chan<- Draw) {
	c.out = out
}

// SetCheckpointer sets the checkpoint storage. The state is saved
// when the last checkpoint becomes old and at the end of every run.
func (c *Chain) SetCheckpointer(cp Checkpointer) {
	c.cp = cp
}

// checkpoint saves the state. Failures are logged but not fatal.
func (c *Chain) checkpoint(final bool) {
	if c.cp == nil {
		return
	}
	s, err := c.State()
	if err == nil {
		err = c.cp.Save(s, final)
	}
	if err != nil {
		log.Errorf("Chain %s: checkpoint failed: %v", c.state.ID, err)
	}
}

// ID returns the chain identifier.
func (c *Chain) ID() string {
	return c.state.ID
}

// Iteration returns the number of completed iterations.
func (c *Chain) Iteration() int {
	return c.state.Iteration
}

// StepSize returns the current step size.
func (c *Chain) StepSize() float64 {
	return c.state.StepSize
}

// Preconditioner returns the current preconditioner.
func (c *Chain) Preconditioner() *Preconditioner {
	return c.state.Preconditioner
}

// Position returns a copy of the current position.
func (c *Chain) Position() []float64 {
	return append([]float64(nil), c.state.Point.Theta...)
}

// Warmup returns true while the chain is adapting.
func (c *Chain) Warmup() bool {
	a := c.state.Adaptation
	return a != nil && a.Adapting()
}

// State returns a snapshot of the chain state.
func (c *Chain) State() (*ChainState, error) {
	c.state.RNG = c.src.state()
	return c.state.Clone()
}

// initialize runs the initial step size search when the adaptation
// is in the Init state.
func (c *Chain) initialize() error {
	a := c.state.Adaptation
	if a == nil || a.Phase != PhaseInit {
		return nil
	}
	eps := c.state.StepSize
	if c.conf.FindStepSize {
		var err error
		eps, err = FindReasonableStepSize(c.target, c.state.Preconditioner, &c.state.Point, eps, c.rng, c.conf.MaxStepSizeSearch)
		if err != nil {
			return errors.Wrapf(err, "chain %s", c.state.ID)
		}
		log.Infof("Initial step size: %g", eps)
	}
	c.state.StepSize = eps
	a.start(eps, c.conf.TargetAccept)
	if !a.Adapting() {
		c.state.Adaptation = nil
	}
	return nil
}

// Step performs one iteration.
func (c *Chain) Step() (Draw, error) {
	if err := c.initialize(); err != nil {
		return Draw{}, err
	}
	s := c.state
	a := s.Adaptation
	warmup := a != nil && a.Adapting()
	phase := PhaseFrozen
	if a != nil {
		phase = a.Phase
	}

	st, err := c.kernel.Step(c)
	if err != nil {
		return Draw{}, errors.Wrapf(err, "chain %s, iteration %d", s.ID, s.Iteration)
	}
	st.Phase = phase
	if warmup {
		s.StepSize, s.Preconditioner = a.observe(st.AcceptanceProbability, s.Point.Theta, s.StepSize, s.Preconditioner)
	}

	d := Draw{
		Chain:     s.ID,
		Iteration: s.Iteration,
		Theta:     append([]float64(nil), s.Point.Theta...),
		LogP:      s.Point.LogP,
		Stats:     st,
		Warmup:    warmup,
	}
	s.Iteration++
	s.RNG = c.src.state()
	return d, nil
}

// progress is a progress report.
type progress struct {
	iteration   int
	logp        float64
	acceptance  float64
	stepSize    float64
	divergences int
	warmup      bool
}

// Run performs iterations and returns the run summary. It stops
// early if ctx is cancelled. Draws are sent to the output channel if
// it is set.
func (c *Chain) Run(ctx context.Context, iterations int) (*Summary, error) {
	startTime := time.Now()
	sum := newSummary(c)

	reports := make(chan progress, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range reports {
			stage := "sampling"
			if r.warmup {
				stage = "warmup"
			}
			log.Infof("%d (%s): L=%f, step size=%g, acceptance rate %.2f%%, divergences=%d",
				r.iteration, stage, r.logp, r.stepSize, 100*r.acceptance, r.divergences)
		}
	}()
	defer func() {
		close(reports)
		<-done
	}()

	// Periodic checkpoints are written in the background. While a
	// snapshot is being saved, no new one is taken.
	var saves chan *ChainState
	var saving int32
	saved := make(chan struct{})
	if c.cp != nil {
		saves = make(chan *ChainState, 1)
		go func(saves <-chan *ChainState) {
			defer close(saved)
			for s := range saves {
				if err := c.cp.Save(s, false); err != nil {
					log.Errorf("Chain %s: checkpoint failed: %v", s.ID, err)
				}
				atomic.StoreInt32(&saving, 0)
			}
		}(saves)
	} else {
		close(saved)
	}
	stopSaving := func() {
		if saves != nil {
			close(saves)
			saves = nil
		}
		<-saved
	}
	defer stopSaving()

	accepted := 0.0
	divergences := 0
Iter:
	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			log.Warningf("Chain %s interrupted at iteration %d: %v", c.state.ID, c.state.Iteration, ctx.Err())
			sum.Interrupted = true
			break Iter
		default:
		}

		d, err := c.Step()
		if err != nil {
			sum.finish(c, startTime)
			return sum, err
		}
		if saves != nil && atomic.LoadInt32(&saving) == 0 && c.cp.Old() {
			if st, err := c.State(); err != nil {
				log.Errorf("Chain %s: checkpoint failed: %v", c.state.ID, err)
			} else {
				atomic.StoreInt32(&saving, 1)
				select {
				case saves <- st:
				default:
					atomic.StoreInt32(&saving, 0)
				}
			}
		}
		sum.add(&d)
		accepted += d.Stats.AcceptanceProbability
		if d.Stats.Divergent {
			divergences++
		}

		if c.out != nil {
			select {
			case c.out <- d:
			case <-ctx.Done():
				sum.Interrupted = true
				break Iter
			}
		}

		if p := c.conf.ReportPeriod; p > 0 && (i+1)%p == 0 {
			r := progress{
				iteration:   d.Iteration,
				logp:        d.LogP,
				acceptance:  accepted / float64(p),
				stepSize:    d.Stats.StepSize,
				divergences: divergences,
				warmup:      d.Warmup,
			}
			select {
			case reports <- r:
			default:
			}
			accepted = 0
			divergences = 0
		}
	}

	stopSaving()
	c.checkpoint(!sum.Interrupted)
	sum.finish(c, startTime)
	return sum, nil
}

func (c *Chain) String() string {
	return fmt.Sprintf("chain %s (%s, iteration %d, step size %g)", c.state.ID, c.kernel.Name(), c.state.Iteration, c.state.StepSize)
}
