// Package dist implements log-density targets with analytic
// gradients for the sampler.
package dist

import (
	"fmt"
	"math"

	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat/distmv"
	"github.com/pkg/errors"

	"bitbucket.org/Davydov/gohmc/hmc"
)

// indexNames returns names prefix[0], prefix[1], ...
func indexNames(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s[%d]", prefix, i)
	}
	return names
}

// Normal is a product of independent normal distributions.
type Normal struct {
	Mu    []float64
	SD    []float64
	names []string
}

// NewNormal creates a normal target. Standard deviations must be
// positive.
func NewNormal(mu, sd []float64) (*Normal, error) {
	if len(mu) != len(sd) {
		return nil, errors.Wrapf(hmc.ErrDimensionMismatch, "%d means, %d standard deviations", len(mu), len(sd))
	}
	for i, s := range sd {
		if !(s > 0) || math.IsInf(s, 0) {
			return nil, errors.Errorf("sd[%d]=%v should be positive", i, s)
		}
	}
	return &Normal{
		Mu:    append([]float64(nil), mu...),
		SD:    append([]float64(nil), sd...),
		names: indexNames("x", len(mu)),
	}, nil
}

// NewStandardNormal creates a standard normal target of dimension n.
func NewStandardNormal(n int) *Normal {
	mu := make([]float64, n)
	sd := make([]float64, n)
	for i := range sd {
		sd[i] = 1
	}
	t, _ := NewNormal(mu, sd)
	return t
}

// Dim returns the number of dimensions.
func (t *Normal) Dim() int {
	return len(t.Mu)
}

// Names returns the variable names.
func (t *Normal) Names() []string {
	return t.names
}

// LogDensity returns the unnormalized log density and its gradient.
func (t *Normal) LogDensity(theta []float64) (float64, []float64, error) {
	grad := make([]float64, len(theta))
	l := 0.0
	for i, x := range theta {
		z := (x - t.Mu[i]) / t.SD[i]
		l -= z * z / 2
		grad[i] = -z / t.SD[i]
	}
	return l, grad, nil
}

// MvNormal is a multivariate normal distribution.
type MvNormal struct {
	mu        []float64
	normal    *distmv.Normal
	precision *mat64.SymDense
	names     []string
}

// NewMvNormal creates a multivariate normal target with mean mu and
// covariance cov given in row-major order.
func NewMvNormal(mu, cov []float64) (*MvNormal, error) {
	n := len(mu)
	if len(cov) != n*n {
		return nil, errors.Wrapf(hmc.ErrDimensionMismatch, "covariance has %d elements, want %d", len(cov), n*n)
	}
	sigma := mat64.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, (cov[i*n+j]+cov[j*n+i])/2)
		}
	}
	var chol mat64.Cholesky
	if ok := chol.Factorize(sigma); !ok {
		return nil, errors.New("covariance matrix is not positive definite")
	}
	t := &MvNormal{
		mu:        append([]float64(nil), mu...),
		precision: mat64.NewSymDense(n, nil),
		names:     indexNames("x", n),
	}
	if err := t.precision.InverseCholesky(&chol); err != nil {
		return nil, errors.Wrap(err, "cannot invert covariance matrix")
	}
	var ok bool
	if t.normal, ok = distmv.NewNormal(t.mu, sigma, nil); !ok {
		return nil, errors.New("covariance matrix is not positive definite")
	}
	return t, nil
}

// NewCorrelated creates a multivariate normal target of dimension n
// with unit variances and all the correlations equal to rho.
func NewCorrelated(n int, rho float64) (*MvNormal, error) {
	cov := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cov[i*n+j] = rho
			if i == j {
				cov[i*n+j] = 1
			}
		}
	}
	return NewMvNormal(make([]float64, n), cov)
}

// Dim returns the number of dimensions.
func (t *MvNormal) Dim() int {
	return len(t.mu)
}

// Names returns the variable names.
func (t *MvNormal) Names() []string {
	return t.names
}

// LogDensity returns the normalized log density and its gradient
// -Σ⁻¹(θ-μ).
func (t *MvNormal) LogDensity(theta []float64) (float64, []float64, error) {
	n := len(t.mu)
	d := make([]float64, n)
	for i, x := range theta {
		d[i] = x - t.mu[i]
	}
	var g mat64.Vector
	g.MulVec(t.precision, mat64.NewVector(n, d))
	grad := make([]float64, n)
	for i := range grad {
		grad[i] = -g.At(i, 0)
	}
	return t.normal.LogProb(theta), grad, nil
}

// Bounded is a standard normal distribution truncated to the box
// [-Bound, Bound]. Outside of the box it returns a domain error.
type Bounded struct {
	*Normal
	Bound float64
}

// NewBounded creates a truncated standard normal target.
func NewBounded(n int, bound float64) *Bounded {
	return &Bounded{NewStandardNormal(n), bound}
}

// LogDensity returns the log density or a domain error.
func (t *Bounded) LogDensity(theta []float64) (float64, []float64, error) {
	for i, x := range theta {
		if math.Abs(x) > t.Bound {
			return 0, nil, hmc.NewDomainError("x[%d]=%v is outside of [-%v, %v]", i, x, t.Bound, t.Bound)
		}
	}
	return t.Normal.LogDensity(theta)
}

// Funnel is the Neal's funnel: v ~ N(0, Scale²) and x_i ~ N(0, exp(v)).
type Funnel struct {
	N     int
	Scale float64
	names []string
}

// NewFunnel creates a funnel with n dimensions, the first one being v.
func NewFunnel(n int) *Funnel {
	return &Funnel{
		N:     n,
		Scale: 3,
		names: append([]string{"v"}, indexNames("x", n-1)...),
	}
}

// Dim returns the number of dimensions.
func (t *Funnel) Dim() int {
	return t.N
}

// Names returns the variable names.
func (t *Funnel) Names() []string {
	return t.names
}

// LogDensity returns the unnormalized log density and its gradient.
func (t *Funnel) LogDensity(theta []float64) (float64, []float64, error) {
	grad := make([]float64, len(theta))
	v := theta[0]
	ev := math.Exp(-v)
	s2 := t.Scale * t.Scale
	k := float64(len(theta) - 1)
	l := -v*v/(2*s2) - k*v/2
	grad[0] = -v/s2 - k/2
	for i := 1; i < len(theta); i++ {
		x := theta[i]
		l -= x * x * ev / 2
		grad[0] += x * x * ev / 2
		grad[i] = -x * ev
	}
	return l, grad, nil
}

// Transformer is a target sampled in an unconstrained space.
type Transformer interface {
	// Transform maps a position to the constrained space.
	Transform(theta []float64) []float64
	// TransformedNames returns the names of the constrained variables.
	TransformedNames() []string
}

// Beta is the beta distribution of x sampled as logit(x).
type Beta struct {
	A, B float64
}

// NewBeta creates a beta target with shape parameters a and b.
func NewBeta(a, b float64) (*Beta, error) {
	if !(a > 0) || !(b > 0) {
		return nil, errors.Errorf("beta shape parameters (%v, %v) should be positive", a, b)
	}
	return &Beta{a, b}, nil
}

// Dim returns 1.
func (t *Beta) Dim() int {
	return 1
}

// Names returns the variable name.
func (t *Beta) Names() []string {
	return []string{"logit(x)"}
}

// LogDensity returns the normalized log density of logit(x)
// including the Jacobian of the transformation.
func (t *Beta) LogDensity(theta []float64) (float64, []float64, error) {
	y := theta[0]
	x := logistic(y)
	l := t.A*logLogistic(y) + t.B*logLogistic(-y) - LnBeta(t.A, t.B)
	return l, []float64{t.A*(1-x) - t.B*x}, nil
}

// TransformedNames returns the name of x.
func (t *Beta) TransformedNames() []string {
	return []string{"x"}
}

// Transform returns x from logit(x).
func (t *Beta) Transform(theta []float64) []float64 {
	return []float64{logistic(theta[0])}
}

// Gamma is the gamma distribution of y sampled as log(y).
type Gamma struct {
	Shape, Rate float64
}

// NewGamma creates a gamma target.
func NewGamma(shape, rate float64) (*Gamma, error) {
	if !(shape > 0) || !(rate > 0) {
		return nil, errors.Errorf("gamma parameters (%v, %v) should be positive", shape, rate)
	}
	return &Gamma{shape, rate}, nil
}

// Dim returns 1.
func (t *Gamma) Dim() int {
	return 1
}

// Names returns the variable name.
func (t *Gamma) Names() []string {
	return []string{"log(y)"}
}

// LogDensity returns the normalized log density of log(y) including
// the Jacobian of the transformation.
func (t *Gamma) LogDensity(theta []float64) (float64, []float64, error) {
	z := theta[0]
	ez := math.Exp(z)
	l := t.Shape*z - t.Rate*ez + t.Shape*math.Log(t.Rate) - LnGamma(t.Shape)
	return l, []float64{t.Shape - t.Rate*ez}, nil
}

// TransformedNames returns the name of y.
func (t *Gamma) TransformedNames() []string {
	return []string{"y"}
}

// Transform returns y from log(y).
func (t *Gamma) Transform(theta []float64) []float64 {
	return []float64{math.Exp(theta[0])}
}
