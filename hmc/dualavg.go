package hmc

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Step size search limits.
const (
	minStepSize = 1e-300
	maxStepSize = 1e300
)

// DualAveraging adapts the step size towards the target acceptance
// rate Delta (Hoffman & Gelman 2014, algorithm 5).
type DualAveraging struct {
	// M is the number of updates.
	M int `json:"m"`
	// HBar is the running average of Delta - alpha.
	HBar float64 `json:"hBar"`
	// LogEps is the current log step size.
	LogEps float64 `json:"logEps"`
	// LogEpsBar is the averaged log step size.
	LogEpsBar float64 `json:"logEpsBar"`
	// Mu is the value log step size is shrunk towards.
	Mu float64 `json:"mu"`
	// Delta is the target acceptance rate.
	Delta float64 `json:"delta"`
	// Gamma controls the shrinkage towards Mu.
	Gamma float64 `json:"gamma"`
	// T0 stabilizes the first iterations.
	T0 float64 `json:"t0"`
	// Kappa controls the averaging weights.
	Kappa float64 `json:"kappa"`
}

// NewDualAveraging creates a step size adapter starting from eps with
// target acceptance rate delta.
func NewDualAveraging(eps, delta float64) *DualAveraging {
	mu := math.Log(10 * eps)
	return &DualAveraging{
		LogEps:    math.Log(eps),
		LogEpsBar: mu,
		Mu:        mu,
		Delta:     delta,
		Gamma:     0.05,
		T0:        10,
		Kappa:     0.75,
	}
}

// Update updates the state given the acceptance probability of the
// last transition.
func (da *DualAveraging) Update(alpha float64) {
	da.M++
	m := float64(da.M)
	eta := 1 / (m + da.T0)
	da.HBar = (1-eta)*da.HBar + eta*(da.Delta-alpha)
	da.LogEps = da.Mu - math.Sqrt(m)/da.Gamma*da.HBar
	// m^-κ·logε + (1 - m^-κ)·logε̄
	da.LogEpsBar += math.Pow(m, -da.Kappa) * (da.LogEps - da.LogEpsBar)
}

// Restart sets the shrinkage point for the new step size eps. It is
// called after the preconditioner changes.
func (da *DualAveraging) Restart(eps float64) {
	da.Mu = math.Log(10 * eps)
}

// StepSize returns the step size used during the adaptation.
func (da *DualAveraging) StepSize() float64 {
	return math.Exp(da.LogEps)
}

// FinalStepSize returns the averaged step size used after the
// adaptation.
func (da *DualAveraging) FinalStepSize() float64 {
	return math.Exp(da.LogEpsBar)
}

// FindReasonableStepSize searches for a step size for which a single
// leapfrog step from pt has acceptance probability close to 0.5. The
// trial step size is doubled while the acceptance probability is
// above 0.5 or halved while it is below, until it crosses 0.5.
// ErrAdaptationFailure is returned after maxTrials unsuccessful trials.
func FindReasonableStepSize(t Target, pc *Preconditioner, pt *Point, eps float64, rng *rand.Rand, maxTrials int) (float64, error) {
	p := make([]float64, len(pt.Theta))
	trial := func(eps float64) (float64, error) {
		pc.SampleMomentum(rng, p)
		h0 := Hamiltonian(pt.LogP, p, pc)
		tr, err := Leapfrog(t, pc, pt, p, eps, 1)
		if err != nil {
			return 0, err
		}
		if tr.Divergent {
			return 0, nil
		}
		return AcceptanceProbability(h0, Hamiltonian(tr.End.LogP, tr.Momentum, pc)), nil
	}

	alpha, err := trial(eps)
	if err != nil {
		return 0, err
	}
	up := alpha > 0.5
	for n := 1; ; n++ {
		if (up && alpha <= 0.5) || (!up && alpha >= 0.5) {
			log.Debugf("Found step size %g after %d trials", eps, n)
			return eps, nil
		}
		if n > maxTrials {
			return 0, errors.Wrapf(ErrAdaptationFailure,
				"initial step size search did not converge after %d trials (step size=%g, acceptance=%g)",
				maxTrials, eps, alpha)
		}
		if up {
			eps *= 2
		} else {
			eps /= 2
		}
		if eps < minStepSize || eps > maxStepSize {
			return 0, errors.Wrapf(ErrAdaptationFailure,
				"initial step size search left the range (step size=%g, acceptance=%g)", eps, alpha)
		}
		alpha, err = trial(eps)
		if err != nil {
			return 0, err
		}
	}
}
