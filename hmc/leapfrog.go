package hmc

import (
	"github.com/gonum/floats"
)

// Trajectory is the result of the leapfrog integration.
type Trajectory struct {
	// End is the last valid point of the trajectory.
	End *Point
	// Momentum is the momentum at End.
	Momentum []float64
	// Steps is the number of completed valid steps.
	Steps int
	// Divergent is true if the integration stopped because the log
	// density became non-finite.
	Divergent bool
}

// Leapfrog simulates the Hamiltonian dynamics for n steps of size eps
// starting at start with momentum p. Neither start nor p are
// modified. The integration stops at the first point where the target
// is not finite; the trajectory is then marked as divergent and End
// holds the last valid point.
func Leapfrog(t Target, pc *Preconditioner, start *Point, p []float64, eps float64, n int) (*Trajectory, error) {
	d := len(start.Theta)
	tr := &Trajectory{
		End:      start.Clone(),
		Momentum: append([]float64(nil), p...),
	}
	cur := tr.End
	next := newPoint(d)
	theta := make([]float64, d)
	v := make([]float64, d)

	for i := 0; i < n; i++ {
		floats.AddScaled(tr.Momentum, eps/2, cur.Grad)
		pc.Velocity(v, tr.Momentum)
		copy(theta, cur.Theta)
		floats.AddScaled(theta, eps, v)

		ok, err := evaluate(t, theta, next)
		if err != nil {
			return nil, err
		}
		if !ok {
			// undo the half step so that End and Momentum match
			floats.AddScaled(tr.Momentum, -eps/2, cur.Grad)
			tr.Divergent = true
			break
		}
		floats.AddScaled(tr.Momentum, eps/2, next.Grad)
		cur, next = next, cur
		tr.Steps++
	}
	tr.End = cur
	return tr, nil
}
