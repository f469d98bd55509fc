// Package render draws county choropleth maps with gonum/plot.
package render

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/yield-atlas/internal/model"
)

// Classes is an equal-width classification. Class i covers
// [Breaks[i], Breaks[i+1]) except the last, which is closed on both ends.
type Classes struct {
	Breaks []float64
}

// NewClasses splits the range of the non-NaN values into n equal-width
// classes. When every value is equal the result is a single degenerate
// class; when there are no values it has no classes.
func NewClasses(values []float64, n int) (*Classes, error) {
	if n < 2 {
		return nil, model.RenderError(eris.Errorf("render: class count must be at least 2, got %d", n))
	}
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return &Classes{}, nil
	}
	lo, hi := floats.Min(finite), floats.Max(finite)
	if lo == hi {
		return &Classes{Breaks: []float64{lo, hi}}, nil
	}

	// Breaks come from the full span, not an accumulated width.
	breaks := make([]float64, n+1)
	for i := range breaks {
		breaks[i] = lo + (hi-lo)*float64(i)/float64(n)
	}
	breaks[n] = hi
	return &Classes{Breaks: breaks}, nil
}

// ClassesOf classifies nullable values; nil entries are skipped.
func ClassesOf(values []*float64, n int) (*Classes, error) {
	vs := make([]float64, len(values))
	for i, v := range values {
		vs[i] = model.Value(v)
	}
	return NewClasses(vs, n)
}

// N returns the number of classes.
func (c *Classes) N() int {
	if len(c.Breaks) < 2 {
		return 0
	}
	return len(c.Breaks) - 1
}

// Index returns the class of v, or -1 for NaN and values outside the
// classified range.
func (c *Classes) Index(v float64) int {
	n := c.N()
	if n == 0 || math.IsNaN(v) || v < c.Breaks[0] || v > c.Breaks[n] {
		return -1
	}
	for i := n - 1; i > 0; i-- {
		if v >= c.Breaks[i] {
			return i
		}
	}
	return 0
}

// Labels returns one legend label per class, formatted with prec decimal
// places.
func (c *Classes) Labels(prec int) []string {
	out := make([]string, c.N())
	for i := range out {
		lo := strconv.FormatFloat(c.Breaks[i], 'f', prec, 64)
		hi := strconv.FormatFloat(c.Breaks[i+1], 'f', prec, 64)
		if lo == hi {
			out[i] = lo
			continue
		}
		out[i] = fmt.Sprintf("%s - %s", lo, hi)
	}
	return out
}
