package hmc

import (
	"math"
)

// Hamiltonian returns the total energy of a state with log density
// logp and momentum p.
func Hamiltonian(logp float64, p []float64, pc *Preconditioner) float64 {
	return -logp + pc.Kinetic(p)
}

// AcceptanceProbability returns the Metropolis acceptance probability
// for a move from energy h0 to energy h1. It is zero if h1 is not
// finite.
func AcceptanceProbability(h0, h1 float64) float64 {
	if math.IsNaN(h1) || math.IsInf(h1, 0) {
		return 0
	}
	a := math.Exp(h0 - h1)
	if math.IsNaN(a) {
		return 0
	}
	return math.Min(1, a)
}
