package dist

import (
	"math"

	"github.com/gonum/mathext"
)

// QuantileNormal returns quantile for standard normal distribution.
func QuantileNormal(prob float64) float64 {
	return mathext.NormalQuantile(prob)
}

// LnGamma returns log of Gamma function.
func LnGamma(x float64) float64 {
	lg, _ := math.Lgamma(x)
	return lg
}

// LnBeta returns log of Beta function.
func LnBeta(p, q float64) float64 {
	return LnGamma(p) + LnGamma(q) - LnGamma(p+q)
}

// logistic returns 1/(1+exp(-x)).
func logistic(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// logLogistic returns log(logistic(x)) without overflow.
func logLogistic(x float64) float64 {
	if x >= 0 {
		return -math.Log1p(math.Exp(-x))
	}
	return x - math.Log1p(math.Exp(x))
}
