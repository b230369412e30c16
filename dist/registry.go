package dist

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"bitbucket.org/Davydov/gohmc/hmc"
)

// constructor creates a target of dimension dim with parameters.
type constructor func(dim int, params []float64) (hmc.NamedTarget, error)

// param returns params[i] or def if it is not set.
func param(params []float64, i int, def float64) float64 {
	if i < len(params) {
		return params[i]
	}
	return def
}

var targets = map[string]constructor{
	"normal": func(dim int, params []float64) (hmc.NamedTarget, error) {
		// normal:sd1,sd2,... (zero means)
		if len(params) == 0 {
			return NewStandardNormal(dim), nil
		}
		return NewNormal(make([]float64, len(params)), params)
	},
	"correlated": func(dim int, params []float64) (hmc.NamedTarget, error) {
		return NewCorrelated(dim, param(params, 0, 0.9))
	},
	"bounded": func(dim int, params []float64) (hmc.NamedTarget, error) {
		return NewBounded(dim, param(params, 0, 1)), nil
	},
	"funnel": func(dim int, params []float64) (hmc.NamedTarget, error) {
		if dim < 2 {
			return nil, errors.Errorf("funnel requires at least 2 dimensions, got %d", dim)
		}
		f := NewFunnel(dim)
		f.Scale = param(params, 0, f.Scale)
		return f, nil
	},
	"beta": func(dim int, params []float64) (hmc.NamedTarget, error) {
		return NewBeta(param(params, 0, 2), param(params, 1, 2))
	},
	"gamma": func(dim int, params []float64) (hmc.NamedTarget, error) {
		return NewGamma(param(params, 0, 2), param(params, 1, 1))
	},
}

// Names returns the names of the available targets.
func Names() []string {
	names := make([]string, 0, len(targets))
	for n := range targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates a target from a description "name" or
// "name:p1,p2,...", e.g. "funnel:3" or "beta:2,5". Dimension is used
// by targets of variable dimension.
func New(desc string, dim int) (hmc.NamedTarget, error) {
	name := desc
	var params []float64
	if i := strings.IndexByte(desc, ':'); i >= 0 {
		name = desc[:i]
		for _, s := range strings.Split(desc[i+1:], ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "target %q", desc)
			}
			params = append(params, v)
		}
	}
	c, ok := targets[strings.ToLower(name)]
	if !ok {
		return nil, errors.Errorf("unknown target %q, available: %s", name, strings.Join(Names(), ", "))
	}
	if dim < 1 {
		return nil, errors.Errorf("dimension=%d should be positive", dim)
	}
	return c(dim, params)
}
