// Package optimize searches for the maximum of a log density, which is
// used as the starting point of the chains.
package optimize

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/gohmc/hmc"
)

// log is the global logging variable.
var log = logging.MustGetLogger("optimize")

// Optimizer finds the maximum of a target log density.
type Optimizer interface {
	SetTarget(t hmc.Target, start []float64)
	WatchSignals(...os.Signal)
	SetReportPeriod(period int)
	SetOutput(w io.Writer)
	Run(iterations int)
	GetL() float64
	GetMaxL() float64
	GetMaxLParameters() []float64
}

// BaseOptimizer contains the functionality shared by the optimizers.
type BaseOptimizer struct {
	target    hmc.Target
	names     []string
	start     []float64
	i         int
	l         float64
	maxL      float64
	maxLPar   []float64
	calls     int
	repPeriod int
	sig       chan os.Signal
	out       io.Writer
}

// SetTarget sets the target and the starting point.
func (o *BaseOptimizer) SetTarget(t hmc.Target, start []float64) {
	o.target = t
	o.start = append([]float64(nil), start...)
	o.maxL = math.Inf(-1)
	o.names = nil
	if nt, ok := t.(hmc.NamedTarget); ok {
		o.names = nt.Names()
	}
}

// WatchSignals stops the optimizer on the signals.
func (o *BaseOptimizer) WatchSignals(sigs ...os.Signal) {
	o.sig = make(chan os.Signal, 1)
	signal.Notify(o.sig, sigs...)
}

// SetReportPeriod sets how often the trajectory is printed.
func (o *BaseOptimizer) SetReportPeriod(period int) {
	o.repPeriod = period
}

// SetOutput sets the trajectory output, nil disables it.
func (o *BaseOptimizer) SetOutput(w io.Writer) {
	o.out = w
}

// signaled returns true if a watched signal was received.
func (o *BaseOptimizer) signaled() bool {
	select {
	case s := <-o.sig:
		log.Warningf("Received signal %v, stopping the optimization", s)
		return true
	default:
		return false
	}
}

// Likelihood evaluates the log density at x. Points outside of the
// support have the log density -Inf.
func (o *BaseOptimizer) Likelihood(x []float64) (float64, []float64) {
	o.calls++
	l, grad, err := o.target.LogDensity(x)
	switch {
	case err != nil:
		log.Debugf("Log density evaluation failed: %v", err)
		return math.Inf(-1), nil
	case math.IsNaN(l):
		return math.Inf(-1), nil
	}
	if l > o.maxL {
		o.maxL = l
		o.maxLPar = append(o.maxLPar[:0], x...)
	}
	return l, grad
}

// PrintHeader prints the trajectory header.
func (o *BaseOptimizer) PrintHeader() {
	if o.out == nil {
		return
	}
	names := o.names
	if names == nil {
		for i := 0; i < len(o.start); i++ {
			names = append(names, "x"+strconv.Itoa(i))
		}
	}
	fmt.Fprintf(o.out, "iteration\tlikelihood\t%s\n", strings.Join(names, "\t"))
}

// PrintLine prints the trajectory line every report period.
func (o *BaseOptimizer) PrintLine(x []float64, l float64) {
	if o.out == nil || o.repPeriod <= 0 || o.i%o.repPeriod != 0 {
		return
	}
	fmt.Fprintf(o.out, "%d\t%f\t%s\n", o.i, l, FloatsString(x))
}

// PrintFinal reports the maximum found.
func (o *BaseOptimizer) PrintFinal() {
	log.Noticef("Maximum log density: %v (%d evaluations)", o.maxL, o.calls)
	for i, v := range o.maxLPar {
		if i < len(o.names) {
			log.Infof("%s=%v", o.names[i], v)
		} else {
			log.Infof("x[%d]=%v", i, v)
		}
	}
}

// GetL returns the log density at the current point.
func (o *BaseOptimizer) GetL() float64 {
	return o.l
}

// GetMaxL returns the maximum log density.
func (o *BaseOptimizer) GetMaxL() float64 {
	return o.maxL
}

// GetMaxLParameters returns the point with the maximum log density.
func (o *BaseOptimizer) GetMaxLParameters() []float64 {
	if o.maxLPar == nil {
		return append([]float64(nil), o.start...)
	}
	return append([]float64(nil), o.maxLPar...)
}
