package optimize

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// ReadFloats converts a string of floats separated by spaces or
// commas into a slice of float64.
func ReadFloats(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	var result []float64
	for _, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return result, errors.Wrapf(err, "cannot parse %q", s)
		}
		result = append(result, x)
	}
	return result, nil
}

// FloatsString formats floats separated by tabs.
func FloatsString(x []float64) string {
	s := make([]string, len(x))
	for i, v := range x {
		s[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return strings.Join(s, "\t")
}
