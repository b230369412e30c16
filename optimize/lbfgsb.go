package optimize

import (
	"math"

	lbfgsb "github.com/idavydov/go-lbfgsb"
)

// LBFGSB maximizes the log density using L-BFGS-B with the analytic
// gradient of the target.
type LBFGSB struct {
	BaseOptimizer
	// Bounds are optional box constraints, one [lower, upper] pair
	// per dimension.
	Bounds [][2]float64
	grad   []float64
	stop   bool
}

// NewLBFGSB creates a new L-BFGS-B optimizer.
func NewLBFGSB() *LBFGSB {
	return &LBFGSB{
		BaseOptimizer: BaseOptimizer{
			repPeriod: 10,
		},
	}
}

// Logger is called by L-BFGS-B after every iteration.
func (l *LBFGSB) Logger(info *lbfgsb.OptimizationIterationInformation) {
	l.i = info.Iteration
	l.l = -info.F
	l.PrintLine(info.X, l.l)
	if l.signaled() {
		l.stop = true
	}
}

// EvaluateFunction returns the negative log density.
func (l *LBFGSB) EvaluateFunction(x []float64) float64 {
	if l.stop {
		return math.Inf(1)
	}
	L, _ := l.Likelihood(x)
	return -L
}

// EvaluateGradient returns the gradient of the negative log density.
func (l *LBFGSB) EvaluateGradient(x []float64) []float64 {
	if l.grad == nil {
		l.grad = make([]float64, len(x))
	}
	_, grad := l.Likelihood(x)
	for i := range l.grad {
		l.grad[i] = 0
		if i < len(grad) && !math.IsNaN(grad[i]) && !math.IsInf(grad[i], 0) {
			l.grad[i] = -grad[i]
		}
	}
	return l.grad
}

// Run starts the optimization.
func (l *LBFGSB) Run(iterations int) {
	l.PrintHeader()

	opt := new(lbfgsb.Lbfgsb)
	opt.SetApproximationSize(10)
	opt.SetFTolerance(1e-9)
	opt.SetGTolerance(1e-9)
	if l.Bounds != nil {
		opt.SetBounds(l.Bounds)
	}
	opt.SetLogger(l.Logger)

	res, exitStatus := opt.Minimize(l, l.start)
	log.Infof("Exit status: %v", exitStatus)
	if L, _ := l.Likelihood(res.X); L > l.l {
		l.l = L
	}

	log.Info("Finished LBFGSB")
	l.PrintFinal()
}
