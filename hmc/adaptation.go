package hmc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Phase is the state of the warmup adaptation.
type Phase int

// Adaptation phases.
const (
	// PhaseInit is the initial state, before the step size search.
	PhaseInit Phase = iota
	// PhaseGrowingWindow adapts both the step size and the
	// preconditioner.
	PhaseGrowingWindow
	// PhaseFinalWindow adapts the step size only.
	PhaseFinalWindow
	// PhaseFrozen is the terminal state, no adaptation.
	PhaseFrozen
)

// phaseNames are used for printing and parsing.
var phaseNames = []string{"init", "window", "final", "frozen"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if strings.EqualFold(string(b), name) {
			*p = Phase(i)
			return nil
		}
	}
	return errors.Errorf("unknown adaptation phase %q", b)
}

// Window is a range [Start, End) of warmup iterations.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of iterations in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// Schedule splits the warmup into covariance estimation windows
// followed by a final step size only window.
type Schedule struct {
	Warmup  int      `json:"warmup"`
	Windows []Window `json:"windows"`
	Final   Window   `json:"final"`
}

// NewSchedule creates a schedule for warmup iterations. The window
// lengths start from base and double; the last window is truncated so
// that the windows end where the final window of length final begins.
// A warmup shorter than base+final has no estimation windows.
func NewSchedule(warmup, base, final int) Schedule {
	s := Schedule{Warmup: warmup}
	if warmup <= 0 {
		return s
	}
	if base <= 0 || warmup < base+final {
		s.Final = Window{0, warmup}
		return s
	}
	end := warmup - final
	for start, size := 0, base; start < end; start, size = start+size, size*2 {
		stop := start + size
		if stop > end {
			stop = end
		}
		s.Windows = append(s.Windows, Window{start, stop})
	}
	s.Final = Window{end, warmup}
	return s
}

// Lengths returns the lengths of the estimation windows.
func (s Schedule) Lengths() []int {
	l := make([]int, len(s.Windows))
	for i, w := range s.Windows {
		l[i] = w.Len()
	}
	return l
}

// Adaptation is the warmup state machine: Init → GrowingWindow(1..k)
// → FinalWindow → Frozen.
type Adaptation struct {
	Phase Phase `json:"phase"`
	// Window is the index of the current estimation window.
	Window int `json:"window"`
	// Iteration is the number of adapted iterations.
	Iteration     int            `json:"iteration"`
	Schedule      Schedule       `json:"schedule"`
	DualAveraging *DualAveraging `json:"dualAveraging,omitempty"`
	Estimator     *Welford       `json:"estimator,omitempty"`
}

// NewAdaptation creates the warmup state for a chain of dimension dim.
func NewAdaptation(conf *Config, dim int) *Adaptation {
	base := conf.BaseWindow
	if conf.Metric == Unit {
		// nothing to estimate
		base = 0
	}
	a := &Adaptation{
		Phase:    PhaseInit,
		Schedule: NewSchedule(conf.Warmup, base, conf.FinalWindow),
	}
	if conf.Metric != Unit {
		a.Estimator = NewWelford(dim, conf.Metric == Dense)
	}
	return a
}

// Adapting returns true unless the adaptation is frozen.
func (a *Adaptation) Adapting() bool {
	return a.Phase != PhaseFrozen
}

// start leaves the Init state given the initial step size.
func (a *Adaptation) start(eps, delta float64) {
	a.DualAveraging = NewDualAveraging(eps, delta)
	switch {
	case a.Schedule.Warmup <= 0:
		a.Phase = PhaseFrozen
	case len(a.Schedule.Windows) > 0:
		a.Phase = PhaseGrowingWindow
	default:
		a.Phase = PhaseFinalWindow
	}
	log.Debugf("Adaptation schedule: windows=%v, final=%v", a.Schedule.Lengths(), a.Schedule.Final.Len())
}

// observe updates the adaptation after a transition with acceptance
// probability alpha ending at theta. It returns the step size and the
// preconditioner for the next iteration.
func (a *Adaptation) observe(alpha float64, theta []float64, eps float64, pc *Preconditioner) (float64, *Preconditioner) {
	if a.Phase == PhaseInit || a.Phase == PhaseFrozen {
		return eps, pc
	}
	a.DualAveraging.Update(alpha)
	eps = a.DualAveraging.StepSize()
	if a.Phase == PhaseGrowingWindow {
		a.Estimator.Add(theta)
	}
	a.Iteration++

	if a.Phase == PhaseGrowingWindow && a.Iteration >= a.Schedule.Windows[a.Window].End {
		if npc, ok := a.Estimator.Estimate(pc.Kind()); ok {
			pc = npc
			log.Infof("Window %d (%d iterations) finished, %v", a.Window+1, a.Schedule.Windows[a.Window].Len(), pc)
		}
		a.Estimator.Reset()
		a.DualAveraging.Restart(eps)
		a.Window++
		if a.Window >= len(a.Schedule.Windows) {
			a.Phase = PhaseFinalWindow
		}
	}

	if a.Iteration >= a.Schedule.Warmup {
		a.Phase = PhaseFrozen
		eps = a.DualAveraging.FinalStepSize()
		log.Infof("Adaptation finished, step size=%g", eps)
	}
	return eps, pc
}
