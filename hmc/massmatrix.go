package hmc

import (
	"math"

	"github.com/gonum/floats"
)

// Regularization constants for the mass matrix estimate.
const (
	// shrinkN is the pseudo-count of the identity prior.
	shrinkN = 5
	// shrinkTarget is the scale of the identity prior.
	shrinkTarget = 1e-3
	// minVariance is the smallest allowed diagonal value.
	minVariance = 1e-10
	// maxJitter is the number of jitter attempts for dense estimates.
	maxJitter = 20
)

// Welford accumulates the mean and the (co)variance of positions.
type Welford struct {
	Dense bool      `json:"dense"`
	N     int       `json:"n"`
	Mean  []float64 `json:"mean"`
	// M2 stores the sum of squared deviations, the diagonal only
	// (len n) or the full matrix in row-major order (len n*n).
	M2 []float64 `json:"m2"`

	delta []float64
}

// NewWelford creates a new accumulator.
func NewWelford(dim int, dense bool) *Welford {
	w := &Welford{
		Dense: dense,
		Mean:  make([]float64, dim),
	}
	if dense {
		w.M2 = make([]float64, dim*dim)
	} else {
		w.M2 = make([]float64, dim)
	}
	return w
}

// Add adds a sample.
func (w *Welford) Add(x []float64) {
	if w.delta == nil {
		w.delta = make([]float64, len(x))
	}
	w.N++
	floats.SubTo(w.delta, x, w.Mean)
	floats.AddScaled(w.Mean, 1/float64(w.N), w.delta)
	d := len(x)
	if !w.Dense {
		for i := range x {
			w.M2[i] += w.delta[i] * (x[i] - w.Mean[i])
		}
		return
	}
	for i := 0; i < d; i++ {
		row := w.M2[i*d : (i+1)*d]
		for j := 0; j < d; j++ {
			row[j] += w.delta[i] * (x[j] - w.Mean[j])
		}
	}
}

// Reset discards all the samples.
func (w *Welford) Reset() {
	w.N = 0
	for i := range w.Mean {
		w.Mean[i] = 0
	}
	for i := range w.M2 {
		w.M2[i] = 0
	}
}

// Variance returns the sample variance of every dimension.
func (w *Welford) Variance() []float64 {
	d := len(w.Mean)
	v := make([]float64, d)
	for i := range v {
		if w.Dense {
			v[i] = w.M2[i*d+i]
		} else {
			v[i] = w.M2[i]
		}
		v[i] /= float64(w.N - 1)
	}
	return v
}

// Covariance returns the sample covariance in row-major order.
func (w *Welford) Covariance() []float64 {
	d := len(w.Mean)
	c := make([]float64, d*d)
	if !w.Dense {
		for i, v := range w.Variance() {
			c[i*d+i] = v
		}
		return c
	}
	for i := range c {
		c[i] = w.M2[i] / float64(w.N-1)
	}
	return c
}

// Estimate returns a regularized preconditioner of the given kind
// computed from the accumulated samples. The sample covariance is
// shrunk towards a small multiple of the identity. It returns false
// if there are not enough samples.
func (w *Welford) Estimate(kind Metric) (*Preconditioner, bool) {
	if w.N < 2 {
		return nil, false
	}
	d := len(w.Mean)
	n := float64(w.N)
	scale := n / (n + shrinkN)
	ridge := shrinkTarget * shrinkN / (n + shrinkN)

	switch kind {
	case Diagonal:
		v := w.Variance()
		for i := range v {
			v[i] = scale*v[i] + ridge
			if !finite(v[i]) {
				log.Warningf("Non-finite variance estimate for dimension %d, using 1", i)
				v[i] = 1
			}
			v[i] = math.Max(v[i], minVariance)
		}
		pc, err := NewDiagonalPreconditioner(v)
		if err != nil {
			panic(err)
		}
		return pc, true
	case Dense:
		c := w.Covariance()
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				k := i*d + j
				c[k] *= scale
				if i == j {
					c[k] += ridge
				}
				if !finite(c[k]) {
					log.Warningf("Non-finite covariance estimate for (%d, %d), using identity", i, j)
					c[k] = 0
					if i == j {
						c[k] = 1
					}
				}
			}
		}
		jitter := minVariance
		for attempt := 0; attempt < maxJitter; attempt++ {
			pc, err := NewDensePreconditioner(d, c)
			if err == nil {
				return pc, true
			}
			log.Debugf("Covariance estimate rejected (%v), adding jitter %g", err, jitter)
			for i := 0; i < d; i++ {
				c[i*d+i] += jitter
			}
			jitter *= 10
		}
		log.Warning("Could not regularize covariance estimate, using identity")
		return NewIdentityPreconditioner(Dense, d), true
	}
	return NewUnitPreconditioner(d), true
}
