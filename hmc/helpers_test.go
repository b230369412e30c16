package hmc

import (
	"math"
	"math/rand"
)

const smallDiff = 1e-9

// appreq tests if a and b are approximately equal.
func appreq(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// gaussian is an independent normal target with the given standard
// deviations.
type gaussian struct {
	sd   []float64
	grad []float64
}

func newGaussian(sd ...float64) *gaussian {
	return &gaussian{sd: sd, grad: make([]float64, len(sd))}
}

func (g *gaussian) Dim() int {
	return len(g.sd)
}

func (g *gaussian) LogDensity(theta []float64) (float64, []float64, error) {
	l := 0.0
	for i, x := range theta {
		z := x / g.sd[i]
		l -= z * z / 2
		g.grad[i] = -z / g.sd[i]
	}
	return l, g.grad, nil
}

// correlated is a two dimensional normal target with unit variances
// and correlation rho.
type correlated struct {
	rho float64
}

func (c correlated) Dim() int {
	return 2
}

func (c correlated) LogDensity(theta []float64) (float64, []float64, error) {
	x, y := theta[0], theta[1]
	k := 1 / (1 - c.rho*c.rho)
	l := -k * (x*x - 2*c.rho*x*y + y*y) / 2
	return l, []float64{-k * (x - c.rho*y), -k * (y - c.rho*x)}, nil
}

// bounded is a standard normal which is zero outside of [-bound, bound].
func bounded(bound float64, domainError bool) Target {
	return TargetFunc{
		N: 1,
		F: func(theta []float64) (float64, []float64, error) {
			x := theta[0]
			if math.Abs(x) > bound {
				if domainError {
					return 0, nil, NewDomainError("|%v| > %v", x, bound)
				}
				return math.Inf(-1), []float64{0}, nil
			}
			return -x * x / 2, []float64{-x}, nil
		},
	}
}

// testConfig returns a configuration without progress reports.
func testConfig() *Config {
	conf := DefaultConfig()
	conf.ReportPeriod = 0
	conf.Seed = 42
	return conf
}

// testRand returns a deterministic random generator.
func testRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}
