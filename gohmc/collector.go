package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"bitbucket.org/Davydov/gohmc/hmc"
	"bitbucket.org/Davydov/gohmc/optimize"
)

// collector writes the draws and keeps the sampling draws of every
// chain for the summary.
type collector struct {
	w     *bufio.Writer
	names []string
	// index maps chain identifiers to chain numbers.
	index map[string]int
	draws [][]hmc.Draw
	err   error
}

// newCollector creates a collector writing to w.
func newCollector(w io.Writer, names []string, chains []*hmc.Chain) *collector {
	c := &collector{
		w:     bufio.NewWriter(w),
		names: names,
		index: make(map[string]int, len(chains)),
		draws: make([][]hmc.Draw, len(chains)),
	}
	for k, ch := range chains {
		c.index[ch.ID()] = k
	}
	c.header()
	return c
}

func (c *collector) header() {
	_, c.err = fmt.Fprintf(c.w, "chain\titeration\twarmup\tlikelihood\tacceptance\tstepsize\tsteps\tdivergent\t%s\n",
		strings.Join(c.names, "\t"))
}

// add writes a draw.
func (c *collector) add(d *hmc.Draw) {
	k := c.index[d.Chain]
	if !d.Warmup {
		c.draws[k] = append(c.draws[k], *d)
	}
	observe(k, d)
	if c.err != nil {
		return
	}
	_, c.err = fmt.Fprintf(c.w, "%d\t%d\t%s\t%f\t%.4f\t%g\t%d\t%s\t%s\n",
		k, d.Iteration, boolField(d.Warmup), d.LogP, d.Stats.AcceptanceProbability, d.Stats.StepSize,
		d.Stats.LeapfrogSteps, boolField(d.Stats.Divergent), optimize.FloatsString(d.Theta))
}

// run consumes the draws until the channel is closed.
func (c *collector) run(in <-chan hmc.Draw, done chan<- struct{}) {
	defer close(done)
	for d := range in {
		c.add(&d)
	}
}

// flush writes the buffered output and returns the first error.
func (c *collector) flush() error {
	if err := c.w.Flush(); c.err == nil {
		c.err = err
	}
	return c.err
}

// boolField formats a boolean as 0 or 1.
func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
