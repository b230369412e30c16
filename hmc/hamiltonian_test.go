package hmc

import (
	"math"
	"testing"
)

func TestAcceptanceProbability(t *testing.T) {
	tests := []struct {
		h0, h1, want float64
	}{
		{1, 1, 1},
		{1, 0, 1},
		{0, 1, math.Exp(-1)},
		{0, 1e6, 0},
		{-1e6, 1e6, 0},
		{1e6, -1e6, 1},
		{0, math.Inf(1), 0},
		{0, math.Inf(-1), 0},
		{0, math.NaN(), 0},
	}
	for _, test := range tests {
		if a := AcceptanceProbability(test.h0, test.h1); !appreq(a, test.want, smallDiff) {
			t.Errorf("AcceptanceProbability(%v, %v)=%v, want %v", test.h0, test.h1, a, test.want)
		}
	}
}

func TestKineticEnergy(t *testing.T) {
	p := []float64{1, 2}
	diag, _ := NewDiagonalPreconditioner([]float64{2, 0.5})
	dense, err := NewDensePreconditioner(2, []float64{2, 0.5, 0.5, 1})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		pc   *Preconditioner
		want float64
	}{
		{NewUnitPreconditioner(2), 2.5},
		{diag, (2*1 + 0.5*4) / 2.0},
		{dense, (2*1 + 2*0.5*2 + 1*4) / 2.0},
	}
	for _, test := range tests {
		if k := test.pc.Kinetic(p); !appreq(k, test.want, smallDiff) {
			t.Errorf("%v: kinetic energy %v, want %v", test.pc.Kind(), k, test.want)
		}
		if h := Hamiltonian(-3, p, test.pc); !appreq(h, 3+test.want, smallDiff) {
			t.Errorf("%v: Hamiltonian %v, want %v", test.pc.Kind(), h, 3+test.want)
		}
	}
}

func TestMomentumCovariance(t *testing.T) {
	rng := testRand()
	// inverse mass matrix, momentum covariance is its inverse
	dense, err := NewDensePreconditioner(2, []float64{2, 1, 1, 1})
	if err != nil {
		t.Fatal(err)
	}
	diag, _ := NewDiagonalPreconditioner([]float64{4, 0.25})
	tests := []struct {
		pc   *Preconditioner
		want []float64
	}{
		{NewUnitPreconditioner(2), []float64{1, 0, 0, 1}},
		{diag, []float64{0.25, 0, 0, 4}},
		{dense, []float64{1, -1, -1, 2}},
	}
	const n = 200000
	for _, test := range tests {
		w := NewWelford(2, true)
		p := make([]float64, 2)
		for i := 0; i < n; i++ {
			test.pc.SampleMomentum(rng, p)
			w.Add(p)
		}
		for i, c := range w.Covariance() {
			if !appreq(c, test.want[i], 0.05*math.Max(1, math.Abs(test.want[i]))) {
				t.Errorf("%v: momentum covariance %v, want %v", test.pc.Kind(), w.Covariance(), test.want)
				break
			}
		}
	}
}
