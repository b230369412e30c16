package hmc

import (
	"sort"

	"github.com/pkg/errors"
)

// Space is a set of variable names a sampler updates. The empty
// space contains every variable.
type Space map[string]struct{}

// NewSpace creates a space from variable names.
func NewSpace(names ...string) Space {
	s := make(Space, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Contains returns true if the variable belongs to the space.
func (s Space) Contains(name string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[name]
	return ok
}

// Names returns the sorted variable names.
func (s Space) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SubTarget is a target restricted to a space. Variables outside of
// the space are held fixed.
type SubTarget struct {
	target NamedTarget
	index  []int
	names  []string
	full   []float64
	grad   []float64
}

// Subspace restricts t to the variables in s. The remaining variables
// are fixed at the values from full.
func Subspace(t NamedTarget, s Space, full []float64) (*SubTarget, error) {
	all := t.Names()
	if len(full) != t.Dim() || len(all) != t.Dim() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "target has %d dimensions, %d names, %d values",
			t.Dim(), len(all), len(full))
	}
	st := &SubTarget{
		target: t,
		full:   append([]float64(nil), full...),
	}
	for i, n := range all {
		if s.Contains(n) {
			st.index = append(st.index, i)
			st.names = append(st.names, n)
		}
	}
	if len(st.index) == 0 {
		return nil, errors.Errorf("space %v has no variables of the target", s.Names())
	}
	st.grad = make([]float64, len(st.index))
	return st, nil
}

// Dim returns the number of variables in the space.
func (st *SubTarget) Dim() int {
	return len(st.index)
}

// Names returns the variable names in the space.
func (st *SubTarget) Names() []string {
	return st.names
}

// LogDensity evaluates the full target with the space variables set
// to theta.
func (st *SubTarget) LogDensity(theta []float64) (float64, []float64, error) {
	x := st.Expand(theta)
	logp, grad, err := st.target.LogDensity(x)
	if err != nil {
		return logp, nil, err
	}
	if len(grad) != len(x) {
		return logp, grad, nil
	}
	for i, j := range st.index {
		st.grad[i] = grad[j]
	}
	return logp, st.grad, nil
}

// Expand returns the full position with the space variables set to
// theta.
func (st *SubTarget) Expand(theta []float64) []float64 {
	x := append([]float64(nil), st.full...)
	for i, j := range st.index {
		x[j] = theta[i]
	}
	return x
}

// Restrict extracts the space variables from a full position.
func (st *SubTarget) Restrict(full []float64) []float64 {
	theta := make([]float64, len(st.index))
	for i, j := range st.index {
		theta[i] = full[j]
	}
	return theta
}
