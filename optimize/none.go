package optimize

// None is an optimizer which computes the log density at the
// starting point and exits.
type None struct {
	BaseOptimizer
}

// NewNone creates an optimizer which computes initial likelihood only.
func NewNone() *None {
	return &None{}
}

// Run evaluates the starting point.
func (n *None) Run(iterations int) {
	n.l, _ = n.Likelihood(n.start)
	n.PrintHeader()
	n.PrintLine(n.start, n.l)
}
