package hmc

import (
	"math"

	"github.com/gonum/stat"
)

// autocorrelation returns the autocorrelation of x at lag given its
// mean and (biased) variance.
func autocorrelation(x []float64, mean, variance float64, lag int) float64 {
	s := 0.0
	for i := 0; i+lag < len(x); i++ {
		s += (x[i] - mean) * (x[i+lag] - mean)
	}
	return s / float64(len(x)) / variance
}

// ESS estimates the effective sample size of x using Geyer's initial
// monotone sequence estimator.
func ESS(x []float64) float64 {
	n := len(x)
	if n < 4 {
		return float64(n)
	}
	mean, variance := stat.MeanVariance(x, nil)
	if variance == 0 || math.IsNaN(variance) {
		return float64(n)
	}
	variance *= float64(n-1) / float64(n)

	sum := 0.0
	prev := math.Inf(1)
	for k := 0; 2*k+1 < n; k++ {
		pair := autocorrelation(x, mean, variance, 2*k) + autocorrelation(x, mean, variance, 2*k+1)
		if pair <= 0 {
			break
		}
		if pair > prev {
			pair = prev
		}
		sum += pair
		prev = pair
	}
	tau := -1 + 2*sum
	if tau <= 0 {
		return float64(n)
	}
	return float64(n) / tau
}

// Rhat computes the split potential scale reduction factor of the
// chains. Longer chains are truncated to the shortest one, keeping the
// last draws. At least 4 draws per chain are required.
func Rhat(chains [][]float64) float64 {
	if len(chains) == 0 {
		return math.NaN()
	}
	n := len(chains[0])
	for _, c := range chains[1:] {
		if len(c) < n {
			n = len(c)
		}
	}
	h := n / 2
	var halves [][]float64
	for _, c := range chains {
		c = c[len(c)-n:]
		halves = append(halves, c[:h], c[n-h:])
	}
	if len(halves) < 2 || len(halves[0]) < 2 {
		return math.NaN()
	}
	nh := float64(h)
	means := make([]float64, len(halves))
	variances := make([]float64, len(halves))
	for i, h := range halves {
		means[i], variances[i] = stat.MeanVariance(h, nil)
	}
	w := stat.Mean(variances, nil)
	b := stat.Variance(means, nil) * nh
	if w == 0 {
		return math.NaN()
	}
	vplus := (nh-1)/nh*w + b/nh
	return math.Sqrt(vplus / w)
}

// Column returns dimension i of the draws.
func Column(draws []Draw, i int) []float64 {
	x := make([]float64, len(draws))
	for j, d := range draws {
		x[j] = d.Theta[i]
	}
	return x
}
