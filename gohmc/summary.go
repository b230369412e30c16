package main

import (
	"math"
	"sort"

	"github.com/gonum/stat"

	"bitbucket.org/Davydov/gohmc/dist"
	"bitbucket.org/Davydov/gohmc/hmc"
)

// RunSummary is storing gohmc run summary information.
type RunSummary struct {
	// Version stores gohmc version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Seed is the seed used for random number generation initialization.
	Seed int64 `json:"seed"`
	// NThreads is the number of processes used.
	NThreads int `json:"nThreads"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
	// Target is the target description.
	Target string      `json:"target"`
	Config *hmc.Config `json:"config"`
	// Chains are the run summaries of the chains.
	Chains []*hmc.Summary `json:"chains"`
	// Variables summarize the sampling draws of all the chains,
	// followed by the constrained variables of transformed targets.
	Variables []VariableSummary `json:"variables"`
}

// VariableSummary describes the posterior of a single variable.
type VariableSummary struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
	// MCSE is the Monte Carlo standard error of the mean.
	MCSE float64 `json:"mcse"`
	// Lower and Upper bound the 95% confidence interval of the mean.
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	// Quantiles are the 5%, 50% and 95% posterior quantiles.
	Quantiles [3]float64 `json:"quantiles"`
	ESS       float64    `json:"ess"`
	// Rhat is the split potential scale reduction factor, 0 if
	// there are not enough draws.
	Rhat float64 `json:"rhat"`
}

// quantileProbs are the reported posterior quantiles.
var quantileProbs = [3]float64{0.05, 0.5, 0.95}

// transformDraws maps the draws to the constrained space of the
// target.
func transformDraws(tr dist.Transformer, draws [][]hmc.Draw) [][]hmc.Draw {
	res := make([][]hmc.Draw, len(draws))
	for k, d := range draws {
		res[k] = make([]hmc.Draw, len(d))
		for i, draw := range d {
			draw.Theta = tr.Transform(draw.Theta)
			res[k][i] = draw
		}
	}
	return res
}

// summarize computes the posterior summaries from the draws of every
// chain.
func summarize(names []string, draws [][]hmc.Draw) []VariableSummary {
	z := dist.QuantileNormal(0.975)
	res := make([]VariableSummary, len(names))
	for i, name := range names {
		v := VariableSummary{Name: name}
		var all []float64
		var chains [][]float64
		for _, d := range draws {
			x := hmc.Column(d, i)
			if len(x) == 0 {
				continue
			}
			v.ESS += hmc.ESS(x)
			chains = append(chains, x)
			all = append(all, x...)
		}
		if len(all) < 2 {
			res[i] = v
			continue
		}
		v.Mean, v.SD = stat.MeanStdDev(all, nil)
		v.MCSE = v.SD / math.Sqrt(v.ESS)
		v.Lower = v.Mean - z*v.MCSE
		v.Upper = v.Mean + z*v.MCSE
		sort.Float64s(all)
		for j, p := range quantileProbs {
			v.Quantiles[j] = stat.Quantile(p, stat.Empirical, all, nil)
		}
		// NaN cannot be written to JSON
		if r := hmc.Rhat(chains); !math.IsNaN(r) {
			v.Rhat = r
		}
		res[i] = v
	}
	return res
}
