package hmc

import (
	"math/rand"
)

// RNGState is the position of a random number stream.
type RNGState struct {
	Seed  int64  `json:"seed"`
	Draws uint64 `json:"draws"`
}

// source is a math/rand source which counts the draws, so that the
// stream position can be saved and restored.
type source struct {
	src   rand.Source64
	seed  int64
	draws uint64
}

// newSource creates a source at the given stream position.
func newSource(st RNGState) *source {
	s := &source{
		src:  rand.NewSource(st.Seed).(rand.Source64),
		seed: st.Seed,
	}
	for s.draws < st.Draws {
		s.Uint64()
	}
	return s
}

func (s *source) Int63() int64 {
	s.draws++
	return s.src.Int63()
}

func (s *source) Uint64() uint64 {
	s.draws++
	return s.src.Uint64()
}

func (s *source) Seed(seed int64) {
	s.src.Seed(seed)
	s.seed = seed
	s.draws = 0
}

// state returns the current stream position.
func (s *source) state() RNGState {
	return RNGState{Seed: s.seed, Draws: s.draws}
}
