package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bitbucket.org/Davydov/gohmc/dist"
	"bitbucket.org/Davydov/gohmc/hmc"
)

func TestParseConfig(t *testing.T) {
	conf := hmc.DefaultConfig()
	y := "warmup: 300\nkernel: hmcda\ntrajectoryLength: 1.5\nmetric: dense\n"
	if err := parseConfig([]byte(y), conf); err != nil {
		t.Fatal(err)
	}
	if conf.Warmup != 300 || conf.Kernel != "hmcda" || conf.TrajectoryLength != 1.5 || conf.Metric != hmc.Dense {
		t.Errorf("parsed %+v", conf)
	}
	if conf.Iterations != hmc.DefaultConfig().Iterations {
		t.Error("unset field changed")
	}
	if err := parseConfig(nil, conf); err != nil {
		t.Errorf("empty file: %v", err)
	}
	if err := parseConfig([]byte("warmpu: 3\n"), conf); err == nil {
		t.Error("unknown field accepted")
	}
	if err := parseConfig([]byte("metric: sparse\n"), conf); err == nil {
		t.Error("unknown metric accepted")
	}
}

// sample runs chains on target and returns the sampling draws.
func sample(t *testing.T, target hmc.Target, n int) ([]*hmc.Chain, [][]hmc.Draw) {
	conf := hmc.DefaultConfig()
	conf.ReportPeriod = 0
	conf.Warmup = 200
	starts := [][]float64{make([]float64, target.Dim()), make([]float64, target.Dim())}
	for i := range starts[1] {
		starts[1][i] = 1
	}
	chains, err := hmc.NewChains(func(int) hmc.Target { return target }, conf, starts)
	if err != nil {
		t.Fatal(err)
	}
	draws := make([][]hmc.Draw, len(chains))
	for k, c := range chains {
		for i := 0; i < conf.Warmup+n; i++ {
			d, err := c.Step()
			if err != nil {
				t.Fatal(err)
			}
			if !d.Warmup {
				draws[k] = append(draws[k], d)
			}
		}
	}
	return chains, draws
}

func TestSummarize(t *testing.T) {
	target, err := dist.NewNormal([]float64{1, -1}, []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	_, draws := sample(t, target, 1000)
	s := summarize(target.Names(), draws)
	for i, want := range []struct{ mean, sd float64 }{{1, 1}, {-1, 2}} {
		v := s[i]
		if math.Abs(v.Mean-want.mean) > 0.2*want.sd || math.Abs(v.SD-want.sd) > 0.2*want.sd {
			t.Errorf("%s: mean=%v, sd=%v", v.Name, v.Mean, v.SD)
		}
		if !(v.Lower < v.Mean && v.Mean < v.Upper) {
			t.Errorf("%s: interval (%v, %v)", v.Name, v.Lower, v.Upper)
		}
		if !(v.Quantiles[0] < v.Quantiles[1] && v.Quantiles[1] < v.Quantiles[2]) {
			t.Errorf("%s: quantiles %v", v.Name, v.Quantiles)
		}
		if v.ESS <= 0 || v.Rhat <= 0 || v.Rhat > 1.1 {
			t.Errorf("%s: ess=%v, rhat=%v", v.Name, v.ESS, v.Rhat)
		}
	}

	empty := summarize([]string{"x"}, [][]hmc.Draw{nil})
	if empty[0].Mean != 0 || empty[0].Rhat != 0 {
		t.Errorf("summary without draws %+v", empty[0])
	}
}

func TestTransformedSummary(t *testing.T) {
	target, err := dist.NewGamma(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	_, draws := sample(t, target, 2000)
	y := transformDraws(target, draws)
	if y[0][0].Theta[0] != math.Exp(draws[0][0].Theta[0]) {
		t.Errorf("transformed %v to %v", draws[0][0].Theta, y[0][0].Theta)
	}
	if draws[0][0].Theta[0] == y[0][0].Theta[0] {
		t.Error("draws modified")
	}
	v := summarize(target.TransformedNames(), y)[0]
	// gamma(3, 2) has mean 1.5 and sd 0.87
	if v.Name != "y" || math.Abs(v.Mean-1.5) > 0.15 || math.Abs(v.SD-math.Sqrt(3)/2) > 0.15 {
		t.Errorf("%s: mean=%v, sd=%v", v.Name, v.Mean, v.SD)
	}
}

func TestSeedOverride(t *testing.T) {
	if _, err := app.Parse([]string{"normal"}); err != nil {
		t.Fatal(err)
	}
	defer func() { *seed = timeSeed }()
	fn := filepath.Join(t.TempDir(), "conf.yaml")
	if err := os.WriteFile(fn, []byte("seed: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, c := range []struct {
		file string
		flag int64
		want int64
	}{
		{"", timeSeed, timeSeed},
		{fn, timeSeed, 7},
		{fn, 3, 3},
		{"", 3, 3},
	} {
		conf, err := loadConfig(c.file)
		if err != nil {
			t.Fatal(err)
		}
		*seed = c.flag
		if err := applyFlags(conf); err != nil {
			t.Fatal(err)
		}
		if conf.Seed != c.want {
			t.Errorf("file %q, flag %d: seed=%d, want %d", c.file, c.flag, conf.Seed, c.want)
		}
	}
}

func TestCollector(t *testing.T) {
	target := dist.NewStandardNormal(2)
	chains, draws := sample(t, target, 5)
	var buf bytes.Buffer
	c := newCollector(&buf, target.Names(), chains)
	in := make(chan hmc.Draw, 10)
	for _, d := range draws[1] {
		in <- d
	}
	in <- hmc.Draw{Chain: chains[0].ID(), Theta: []float64{0, 0}, Warmup: true}
	close(in)
	done := make(chan struct{})
	c.run(in, done)
	<-done
	if err := c.flush(); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "chain\titeration") || !strings.HasSuffix(lines[0], "x[0]\tx[1]") {
		t.Errorf("header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1\t200\t0\t") || !strings.HasPrefix(lines[6], "0\t0\t1\t") {
		t.Errorf("lines %q, %q", lines[1], lines[6])
	}
	if len(c.draws[0]) != 0 || len(c.draws[1]) != 5 {
		t.Errorf("kept %d and %d draws", len(c.draws[0]), len(c.draws[1]))
	}
}

func TestTracePlot(t *testing.T) {
	target := dist.NewStandardNormal(2)
	_, draws := sample(t, target, 50)
	fn := filepath.Join(t.TempDir(), "trace.svg")
	if err := tracePlot(fn, target.Names(), draws); err != nil {
		t.Fatal(err)
	}
	if st, err := os.Stat(fn); err != nil || st.Size() == 0 {
		t.Errorf("plot not written: %v", err)
	}
}

func TestSplitNames(t *testing.T) {
	names := splitNames(" a, b,,c ")
	if strings.Join(names, "|") != "a|b|c" {
		t.Errorf("splitNames=%v", names)
	}
}
