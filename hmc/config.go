package hmc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Config holds the sampler settings. It is created once per run and
// passed to every chain.
type Config struct {
	// Iterations is the number of iterations after the warmup.
	Iterations int `yaml:"iterations" json:"iterations"`
	// Warmup is the number of adaptation iterations.
	Warmup int `yaml:"warmup" json:"warmup"`
	// StepSize is the initial (or fixed) step size.
	StepSize float64 `yaml:"stepSize" json:"stepSize"`
	// FindStepSize enables the initial step size search.
	FindStepSize bool `yaml:"findStepSize" json:"findStepSize"`
	// Kernel is the transition kernel, "hmc" or "hmcda".
	Kernel string `yaml:"kernel" json:"kernel"`
	// Steps is the number of leapfrog steps for the hmc kernel.
	Steps int `yaml:"steps" json:"steps"`
	// TrajectoryLength is the simulation time for the hmcda kernel.
	TrajectoryLength float64 `yaml:"trajectoryLength" json:"trajectoryLength"`
	// MaxSteps limits the number of leapfrog steps of the hmcda kernel.
	MaxSteps int `yaml:"maxSteps" json:"maxSteps"`
	// TargetAccept is the target acceptance rate of dual averaging.
	TargetAccept float64 `yaml:"targetAccept" json:"targetAccept"`
	// Metric is the preconditioner kind.
	Metric Metric `yaml:"metric" json:"metric"`
	// BaseWindow is the length of the first estimation window.
	BaseWindow int `yaml:"baseWindow" json:"baseWindow"`
	// FinalWindow is the length of the step size only window.
	FinalWindow int `yaml:"finalWindow" json:"finalWindow"`
	// MaxStepSizeSearch is the number of trials of the initial step
	// size search.
	MaxStepSizeSearch int `yaml:"maxStepSizeSearch" json:"maxStepSizeSearch"`
	// DivergenceWarning is the divergence rate above which a warning
	// is issued.
	DivergenceWarning float64 `yaml:"divergenceWarning" json:"divergenceWarning"`
	// Seed initializes the random number generator.
	Seed int64 `yaml:"seed" json:"seed"`
	// ReportPeriod is the number of iterations between progress
	// messages, 0 disables them.
	ReportPeriod int `yaml:"reportPeriod" json:"reportPeriod"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() *Config {
	return &Config{
		Iterations:        1000,
		Warmup:            1000,
		StepSize:          1,
		FindStepSize:      true,
		Kernel:            "hmc",
		Steps:             10,
		TrajectoryLength:  2,
		MaxSteps:          1024,
		TargetAccept:      0.8,
		Metric:            Diagonal,
		BaseWindow:        25,
		FinalWindow:       50,
		MaxStepSizeSearch: 100,
		DivergenceWarning: 0.01,
		Seed:              1,
		ReportPeriod:      100,
	}
}

// Validate checks that the settings are consistent.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	check(c.Iterations >= 0, "iterations=%d < 0", c.Iterations)
	check(c.Warmup >= 0, "warmup=%d < 0", c.Warmup)
	check(c.StepSize > 0 && finite(c.StepSize), "step size=%v should be positive", c.StepSize)
	check(c.TargetAccept > 0 && c.TargetAccept < 1, "target acceptance=%v not in (0, 1)", c.TargetAccept)
	check(c.BaseWindow >= 0, "base window=%d < 0", c.BaseWindow)
	check(c.FinalWindow >= 0, "final window=%d < 0", c.FinalWindow)
	check(c.MaxStepSizeSearch > 0, "step size search trials=%d should be positive", c.MaxStepSizeSearch)
	switch c.Kernel {
	case "hmc":
		check(c.Steps > 0, "steps=%d should be positive", c.Steps)
	case "hmcda":
		check(c.TrajectoryLength > 0, "trajectory length=%v should be positive", c.TrajectoryLength)
		check(c.MaxSteps > 0, "max steps=%d should be positive", c.MaxSteps)
	default:
		problems = append(problems, fmt.Sprintf("unknown kernel %q", c.Kernel))
	}
	if _, ok := metricNames[c.Metric]; !ok {
		problems = append(problems, fmt.Sprintf("unknown metric %v", c.Metric))
	}
	if len(problems) > 0 {
		return errors.Wrap(ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// NewKernel creates the transition kernel.
func (c *Config) NewKernel() (Kernel, error) {
	switch c.Kernel {
	case "hmc":
		return &HMC{Steps: c.Steps}, nil
	case "hmcda":
		return &HMCDA{Length: c.TrajectoryLength, MaxSteps: c.MaxSteps}, nil
	}
	return nil, errors.Wrapf(ErrInvalidConfig, "unknown kernel %q", c.Kernel)
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (warmup=%d, iterations=%d, metric=%v, step size=%g, target acceptance=%g)",
		strings.ToUpper(c.Kernel), c.Warmup, c.Iterations, c.Metric, c.StepSize, c.TargetAccept)
}
