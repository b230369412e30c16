package hmc

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ChainState is everything needed to continue a chain: the position,
// the step size, the preconditioner, the adaptation state and the
// random stream position.
type ChainState struct {
	ID             string          `json:"id"`
	Iteration      int             `json:"iteration"`
	Point          Point           `json:"point"`
	StepSize       float64         `json:"stepSize"`
	Preconditioner *Preconditioner `json:"preconditioner"`
	// Adaptation is nil for chains without warmup.
	Adaptation *Adaptation `json:"adaptation,omitempty"`
	RNG        RNGState    `json:"rng"`
}

// Marshal serializes the state.
func (s *ChainState) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "cannot serialize chain state")
	}
	return b, nil
}

// UnmarshalChainState restores a serialized state.
func UnmarshalChainState(b []byte) (*ChainState, error) {
	s := &ChainState{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, errors.Wrap(err, "cannot restore chain state")
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Clone returns a deep copy of the state.
func (s *ChainState) Clone() (*ChainState, error) {
	b, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	return UnmarshalChainState(b)
}

// check verifies that the dimensions are consistent.
func (s *ChainState) check() error {
	d := len(s.Point.Theta)
	if s.Preconditioner == nil {
		return errors.New("chain state has no preconditioner")
	}
	if len(s.Point.Grad) != d || s.Preconditioner.Dim() != d {
		return errors.Wrapf(ErrDimensionMismatch, "chain state: theta=%d, gradient=%d, preconditioner=%d",
			d, len(s.Point.Grad), s.Preconditioner.Dim())
	}
	if a := s.Adaptation; a != nil && a.Estimator != nil && len(a.Estimator.Mean) != d {
		return errors.Wrapf(ErrDimensionMismatch, "chain state: theta=%d, estimator=%d", d, len(a.Estimator.Mean))
	}
	if !(s.StepSize > 0) {
		return errors.Errorf("chain state: step size=%v", s.StepSize)
	}
	return nil
}
