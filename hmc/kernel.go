package hmc

import (
	"math"
)

// Stats describes a single transition.
type Stats struct {
	AcceptanceProbability float64 `json:"acceptanceProbability"`
	Accepted              bool    `json:"accepted"`
	StepSize              float64 `json:"stepSize"`
	// LeapfrogSteps is the number of valid leapfrog steps.
	LeapfrogSteps int  `json:"leapfrogSteps"`
	Divergent     bool `json:"divergent"`
	// Energy is the Hamiltonian at the start of the transition.
	Energy float64 `json:"energy"`
	// EnergyError is the change of the Hamiltonian along the
	// trajectory, +Inf if divergent.
	EnergyError float64 `json:"energyError"`
	Phase       Phase   `json:"phase"`
}

// Kernel is a Markov chain transition. Implementations differ in how
// the trajectory is built; NUTS-style samplers plug in here.
type Kernel interface {
	Name() string
	Step(c *Chain) (Stats, error)
}

// HMC uses a fixed number of leapfrog steps.
type HMC struct {
	Steps int
}

// Name returns the kernel name.
func (k *HMC) Name() string {
	return "hmc"
}

// Step performs one transition.
func (k *HMC) Step(c *Chain) (Stats, error) {
	return c.transition(k.Steps)
}

// HMCDA uses a fixed trajectory length; the number of leapfrog steps
// follows the step size.
type HMCDA struct {
	Length   float64
	MaxSteps int
}

// Name returns the kernel name.
func (k *HMCDA) Name() string {
	return "hmcda"
}

// Steps returns the number of leapfrog steps for step size eps.
func (k *HMCDA) Steps(eps float64) int {
	n := math.Round(k.Length / eps)
	switch {
	case n < 1:
		return 1
	case n > float64(k.MaxSteps):
		return k.MaxSteps
	}
	return int(n)
}

// Step performs one transition.
func (k *HMCDA) Step(c *Chain) (Stats, error) {
	return c.transition(k.Steps(c.state.StepSize))
}

// transition makes n leapfrog steps from the current state and
// accepts or rejects the proposal.
func (c *Chain) transition(n int) (Stats, error) {
	s := c.state
	pc := s.Preconditioner
	p := c.momentum

	pc.SampleMomentum(c.rng, p)
	h0 := Hamiltonian(s.Point.LogP, p, pc)

	tr, err := Leapfrog(c.target, pc, &s.Point, p, s.StepSize, n)
	if err != nil {
		return Stats{}, err
	}

	h1 := math.Inf(1)
	if !tr.Divergent {
		h1 = Hamiltonian(tr.End.LogP, tr.Momentum, pc)
	}
	st := Stats{
		AcceptanceProbability: AcceptanceProbability(h0, h1),
		StepSize:              s.StepSize,
		LeapfrogSteps:         tr.Steps,
		Divergent:             tr.Divergent,
		Energy:                h0,
		EnergyError:           h1 - h0,
	}
	if !finite(h1) {
		st.Divergent = true
	}
	if c.rng.Float64() < st.AcceptanceProbability {
		st.Accepted = true
		s.Point.copyFrom(tr.End)
	}
	return st, nil
}
