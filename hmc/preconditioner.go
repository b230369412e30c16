package hmc

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat/distmv"
	"github.com/pkg/errors"
)

// Metric is the kind of a preconditioner.
type Metric int

// Preconditioner kinds.
const (
	// Unit uses the identity mass matrix.
	Unit Metric = iota
	// Diagonal uses a diagonal mass matrix.
	Diagonal
	// Dense uses a full mass matrix.
	Dense
)

// metricNames are used for printing and parsing.
var metricNames = map[Metric]string{
	Unit:     "unit",
	Diagonal: "diagonal",
	Dense:    "dense",
}

func (m Metric) String() string {
	if s, ok := metricNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// ParseMetric converts a string to a Metric.
func ParseMetric(s string) (Metric, error) {
	for m, name := range metricNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return Unit, errors.Wrapf(ErrInvalidConfig, "unknown metric %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(b []byte) (err error) {
	*m, err = ParseMetric(string(b))
	return
}

// Preconditioner defines the kinetic energy of the sampler. It
// stores the inverse mass matrix, which is an estimate of the
// posterior covariance. Momentum is drawn from N(0, M) where M is
// the mass matrix.
type Preconditioner struct {
	kind Metric
	dim  int

	// Diagonal
	variance []float64
	sd       []float64

	// Dense
	cov       *mat64.Dense
	precision *mat64.SymDense
	normal    *distmv.Normal
	normalSrc *rand.Rand
}

// NewUnitPreconditioner creates an identity preconditioner.
func NewUnitPreconditioner(dim int) *Preconditioner {
	return &Preconditioner{kind: Unit, dim: dim}
}

// NewDiagonalPreconditioner creates a diagonal preconditioner with the
// given inverse mass matrix diagonal. All the values must be positive
// and finite.
func NewDiagonalPreconditioner(variance []float64) (*Preconditioner, error) {
	pc := &Preconditioner{
		kind:     Diagonal,
		dim:      len(variance),
		variance: append([]float64(nil), variance...),
		sd:       make([]float64, len(variance)),
	}
	for i, v := range pc.variance {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, errors.Errorf("variance[%d]=%v is not positive and finite", i, v)
		}
		pc.sd[i] = math.Sqrt(v)
	}
	return pc, nil
}

// NewDensePreconditioner creates a preconditioner with the inverse mass
// matrix cov given in row-major order. The matrix is symmetrized and
// must be positive definite.
func NewDensePreconditioner(dim int, cov []float64) (*Preconditioner, error) {
	if len(cov) != dim*dim {
		return nil, errors.Wrapf(ErrDimensionMismatch, "covariance has %d elements, want %d", len(cov), dim*dim)
	}
	data := make([]float64, dim*dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			v := (cov[i*dim+j] + cov[j*dim+i]) / 2
			if !finite(v) {
				return nil, errors.Errorf("covariance[%d,%d]=%v is not finite", i, j, v)
			}
			data[i*dim+j] = v
		}
	}

	var chol mat64.Cholesky
	if ok := chol.Factorize(mat64.NewSymDense(dim, data)); !ok {
		return nil, errors.New("covariance matrix is not positive definite")
	}

	pc := &Preconditioner{
		kind: Dense,
		dim:  dim,
		cov:  mat64.NewDense(dim, dim, data),
	}

	var inv mat64.Dense
	if err := inv.Inverse(pc.cov); err != nil {
		return nil, errors.Wrap(err, "covariance matrix inversion failed")
	}
	pc.precision = mat64.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			pc.precision.SetSym(i, j, (inv.At(i, j)+inv.At(j, i))/2)
		}
	}
	if ok := chol.Factorize(pc.precision); !ok {
		return nil, errors.New("mass matrix is not positive definite")
	}
	return pc, nil
}

// NewIdentityPreconditioner creates a preconditioner of the given kind
// with the identity inverse mass matrix.
func NewIdentityPreconditioner(kind Metric, dim int) *Preconditioner {
	switch kind {
	case Diagonal:
		v := make([]float64, dim)
		for i := range v {
			v[i] = 1
		}
		pc, err := NewDiagonalPreconditioner(v)
		if err != nil {
			panic(err)
		}
		return pc
	case Dense:
		c := make([]float64, dim*dim)
		for i := 0; i < dim; i++ {
			c[i*dim+i] = 1
		}
		pc, err := NewDensePreconditioner(dim, c)
		if err != nil {
			panic(err)
		}
		return pc
	}
	return NewUnitPreconditioner(dim)
}

// Kind returns the preconditioner kind.
func (pc *Preconditioner) Kind() Metric {
	return pc.kind
}

// Dim returns the number of dimensions.
func (pc *Preconditioner) Dim() int {
	return pc.dim
}

// Variance returns the diagonal of the inverse mass matrix.
func (pc *Preconditioner) Variance() []float64 {
	v := make([]float64, pc.dim)
	switch pc.kind {
	case Unit:
		for i := range v {
			v[i] = 1
		}
	case Diagonal:
		copy(v, pc.variance)
	case Dense:
		for i := range v {
			v[i] = pc.cov.At(i, i)
		}
	}
	return v
}

// Covariance returns the inverse mass matrix in row-major order.
func (pc *Preconditioner) Covariance() []float64 {
	c := make([]float64, pc.dim*pc.dim)
	switch pc.kind {
	case Dense:
		for i := 0; i < pc.dim; i++ {
			copy(c[i*pc.dim:(i+1)*pc.dim], pc.cov.RawRowView(i))
		}
	default:
		for i, v := range pc.Variance() {
			c[i*pc.dim+i] = v
		}
	}
	return c
}

// SampleMomentum fills p with a draw from N(0, M).
func (pc *Preconditioner) SampleMomentum(rng *rand.Rand, p []float64) {
	switch pc.kind {
	case Unit:
		for i := range p {
			p[i] = rng.NormFloat64()
		}
	case Diagonal:
		for i := range p {
			p[i] = rng.NormFloat64() / pc.sd[i]
		}
	case Dense:
		if pc.normal == nil || pc.normalSrc != rng {
			var ok bool
			pc.normal, ok = distmv.NewNormal(make([]float64, pc.dim), pc.precision, rng)
			if !ok {
				panic("mass matrix is not positive definite")
			}
			pc.normalSrc = rng
		}
		pc.normal.Rand(p)
	}
}

// Velocity stores M⁻¹p in dst.
func (pc *Preconditioner) Velocity(dst, p []float64) {
	switch pc.kind {
	case Unit:
		copy(dst, p)
	case Diagonal:
		floats.MulTo(dst, pc.variance, p)
	case Dense:
		for i := range dst {
			dst[i] = floats.Dot(pc.cov.RawRowView(i), p)
		}
	}
}

// Kinetic returns the kinetic energy pᵀM⁻¹p/2.
func (pc *Preconditioner) Kinetic(p []float64) float64 {
	switch pc.kind {
	case Diagonal:
		k := 0.0
		for i, v := range p {
			k += pc.variance[i] * v * v
		}
		return k / 2
	case Dense:
		k := 0.0
		for i, v := range p {
			k += v * floats.Dot(pc.cov.RawRowView(i), p)
		}
		return k / 2
	}
	return floats.Dot(p, p) / 2
}

func (pc *Preconditioner) String() string {
	return fmt.Sprintf("%v preconditioner (n=%d, variance=%v)", pc.kind, pc.dim, pc.Variance())
}

// preconditionerJSON is the serialized form of a preconditioner.
type preconditionerJSON struct {
	Metric     Metric    `json:"metric"`
	Dim        int       `json:"dim"`
	Variance   []float64 `json:"variance,omitempty"`
	Covariance []float64 `json:"covariance,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (pc *Preconditioner) MarshalJSON() ([]byte, error) {
	j := preconditionerJSON{Metric: pc.kind, Dim: pc.dim}
	switch pc.kind {
	case Diagonal:
		j.Variance = pc.variance
	case Dense:
		j.Covariance = pc.Covariance()
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (pc *Preconditioner) UnmarshalJSON(b []byte) error {
	var j preconditionerJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	var npc *Preconditioner
	var err error
	switch j.Metric {
	case Unit:
		npc = NewUnitPreconditioner(j.Dim)
	case Diagonal:
		npc, err = NewDiagonalPreconditioner(j.Variance)
	case Dense:
		npc, err = NewDensePreconditioner(j.Dim, j.Covariance)
	}
	if err != nil {
		return errors.Wrap(err, "cannot restore preconditioner")
	}
	if npc.dim != j.Dim {
		return errors.Wrapf(ErrDimensionMismatch, "preconditioner dimension %d, stored %d", npc.dim, j.Dim)
	}
	*pc = *npc
	return nil
}
