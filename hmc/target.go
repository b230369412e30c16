package hmc

import (
	"math"

	"github.com/pkg/errors"
)

// Target is a log density oracle. LogDensity returns the log density
// at theta and its gradient. The returned gradient may be reused by
// the target between calls.
type Target interface {
	Dim() int
	LogDensity(theta []float64) (float64, []float64, error)
}

// NamedTarget is a target with a name for every dimension.
type NamedTarget interface {
	Target
	Names() []string
}

// TargetFunc wraps a function as a Target of dimension N.
type TargetFunc struct {
	N int
	F func(theta []float64) (float64, []float64, error)
}

// Dim returns the number of dimensions.
func (t TargetFunc) Dim() int {
	return t.N
}

// LogDensity calls the wrapped function.
func (t TargetFunc) LogDensity(theta []float64) (float64, []float64, error) {
	return t.F(theta)
}

// Point is a position together with the cached log density and
// gradient.
type Point struct {
	Theta []float64 `json:"theta"`
	LogP  float64   `json:"logp"`
	Grad  []float64 `json:"grad"`
}

// newPoint allocates a point of dimension n.
func newPoint(n int) *Point {
	return &Point{
		Theta: make([]float64, n),
		Grad:  make([]float64, n),
	}
}

// Clone returns a deep copy of the point.
func (p *Point) Clone() *Point {
	return &Point{
		Theta: append([]float64(nil), p.Theta...),
		LogP:  p.LogP,
		Grad:  append([]float64(nil), p.Grad...),
	}
}

// copyFrom copies q into p without allocating.
func (p *Point) copyFrom(q *Point) {
	copy(p.Theta, q.Theta)
	copy(p.Grad, q.Grad)
	p.LogP = q.LogP
}

// finite returns true if all the values are finite.
func finite(x ...float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// evaluate calls the target at theta and stores the result in pt. It
// returns false if theta is outside of the support, i.e. the target
// returned a domain error or a non-finite value. Any other error,
// including a gradient of the wrong length, is returned.
func evaluate(t Target, theta []float64, pt *Point) (bool, error) {
	logp, grad, err := t.LogDensity(theta)
	if err != nil {
		if IsDomainError(err) {
			log.Debugf("Domain error: %v", err)
			return false, nil
		}
		return false, errors.Wrap(err, "log density evaluation failed")
	}
	if len(grad) != len(theta) {
		return false, errors.Wrapf(ErrDimensionMismatch,
			"gradient has %d components, position has %d", len(grad), len(theta))
	}
	if !finite(logp) || !finite(grad...) {
		return false, nil
	}
	copy(pt.Theta, theta)
	copy(pt.Grad, grad)
	pt.LogP = logp
	return true, nil
}
