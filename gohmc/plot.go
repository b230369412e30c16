package main

import (
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"bitbucket.org/Davydov/gohmc/hmc"
)

// plotVariables limits the number of traces in a plot.
const plotVariables = 4

// tracePlot saves the trace of the first variables of every chain.
// The format is defined by the file extension.
func tracePlot(fn string, names []string, draws [][]hmc.Draw) error {
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "Trace"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "value"

	var lines []interface{}
	for i, name := range names {
		if i >= plotVariables {
			break
		}
		for k, d := range draws {
			pts := make(plotter.XYs, len(d))
			for j, draw := range d {
				pts[j].X = float64(draw.Iteration)
				pts[j].Y = draw.Theta[i]
			}
			label := name
			if len(draws) > 1 {
				label = name + " #" + strconv.Itoa(k)
			}
			lines = append(lines, label, pts)
		}
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return err
	}
	height := 3 + vg.Length(len(lines)/2)*0.2
	return p.Save(8*vg.Inch, height*vg.Inch, fn)
}
