// Package zonal aggregates raster cells onto county polygons and projects
// future yield from the aggregated change.
package zonal

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/yield-atlas/internal/model"
	"github.com/sells-group/yield-atlas/internal/raster"
)

// Options configures Means.
type Options struct {
	// Weighted weights each cell by its overlap area with the polygon.
	// Otherwise every overlapping cell counts once.
	Weighted bool
}

// cell is a non-null raster cell in the spatial index.
type cell struct {
	bounds *geom.Bounds
	value  float64
}

func (c *cell) Bounds() *geom.Bounds { return c.bounds }

// Index is a spatial index over the non-null cells of a grid.
type Index struct {
	tree  *rtree.Rtree
	cells int
}

// NewIndex indexes every non-null cell of g.
func NewIndex(g *raster.Grid) *Index {
	idx := &Index{tree: rtree.NewTree(25, 50)}
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			v := g.At(r, c)
			if math.IsNaN(v) {
				continue
			}
			idx.tree.Insert(&cell{bounds: g.CellBounds(r, c), value: v})
			idx.cells++
		}
	}
	return idx
}

// Mean returns the mean of the cells overlapping p, or nil when no
// non-null cell overlaps it. When every overlapping cell holds the same
// value v the result is exactly v.
func (idx *Index) Mean(p geom.Polygonal, opts Options) *float64 {
	if p == nil {
		return nil
	}
	var values, weights []float64
	for _, item := range idx.tree.SearchIntersect(p.Bounds()) {
		c := item.(*cell)
		isect := p.Intersection(c.bounds)
		if isect == nil {
			continue
		}
		a := isect.Area()
		if a <= 0 {
			continue
		}
		values = append(values, c.value)
		if opts.Weighted {
			weights = append(weights, a)
		} else {
			weights = append(weights, 1)
		}
	}
	if len(values) == 0 {
		return nil
	}

	// Accumulate offsets from the first value so a constant field has no
	// rounding error.
	v0 := values[0]
	floats.AddConst(-v0, values)
	mean := v0 + floats.Dot(values, weights)/floats.Sum(weights)
	return &mean
}

// Means returns the zonal mean of g for each polygon, index-aligned with
// polys. Null cells are ignored; a polygon overlapping no non-null cell
// gets nil.
func Means(g *raster.Grid, polys []geom.Polygonal, opts Options) []*float64 {
	idx := NewIndex(g)
	out := make([]*float64, len(polys))
	var nulls int
	for i, p := range polys {
		out[i] = idx.Mean(p, opts)
		if out[i] == nil {
			nulls++
		}
	}
	zap.L().Debug("zonal means computed",
		zap.String("component", "zonal"),
		zap.Int("cells", idx.cells),
		zap.Int("polygons", len(polys)),
		zap.Int("null_means", nulls),
		zap.Bool("weighted", opts.Weighted),
	)
	return out
}

// Apply stores each county's percentage change and its projected yield,
// Yield * (1 + pct/100). A nil change or yield leaves the projection nil.
func Apply(counties []*model.County, pcts []*float64) error {
	if len(counties) != len(pcts) {
		return model.AggregationError(eris.Errorf(
			"zonal: %d counties but %d zonal means", len(counties), len(pcts)))
	}
	for i, c := range counties {
		c.PctChange = nil
		c.ProjectedYield = nil
		if pcts[i] == nil {
			continue
		}
		pct := *pcts[i]
		c.PctChange = &pct
		if c.Yield != nil {
			c.ProjectedYield = model.Float(Project(*c.Yield, pct))
		}
	}
	return nil
}

// Project returns yield adjusted by a percentage change.
func Project(yield, pct float64) float64 {
	return yield * (1 + pct/100)
}
