package raster

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/yield-atlas/internal/model"
)

// edgeTol absorbs floating-point noise when an extent edge falls on a
// cell edge.
const edgeTol = 1e-9

// Crop returns the part of g whose cells intersect e, snapped outward to
// whole cells and clipped to the grid. Cells that only touch e along an
// edge are excluded. An extent that contains the grid returns a copy of
// the full grid.
func Crop(g *Grid, e Extent) (*Grid, error) {
	if !e.Valid() {
		return nil, model.AggregationError(eris.Errorf(
			"raster: invalid extent x [%g, %g] y [%g, %g]", e.XMin, e.XMax, e.YMin, e.YMax))
	}

	c0 := clamp(int(math.Floor((e.XMin-g.X0)/g.Dx+edgeTol)), 0, g.Cols())
	c1 := clamp(int(math.Ceil((e.XMax-g.X0)/g.Dx-edgeTol)), 0, g.Cols())
	r0 := clamp(int(math.Floor((e.YMin-g.Y0)/g.Dy+edgeTol)), 0, g.Rows())
	r1 := clamp(int(math.Ceil((e.YMax-g.Y0)/g.Dy-edgeTol)), 0, g.Rows())
	if c0 >= c1 || r0 >= r1 {
		ge := g.Extent()
		return nil, model.AggregationError(eris.Errorf(
			"raster: extent x [%g, %g] y [%g, %g] does not overlap grid x [%g, %g] y [%g, %g]",
			e.XMin, e.XMax, e.YMin, e.YMax, ge.XMin, ge.XMax, ge.YMin, ge.YMax))
	}

	out := NewGrid(r1-r0, c1-c0,
		g.X0+float64(c0)*g.Dx, g.Y0+float64(r0)*g.Dy, g.Dx, g.Dy)
	out.CRS = g.CRS
	out.Variable = g.Variable
	out.Band = g.Band
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			out.Set(g.At(r, c), r-r0, c-c0)
		}
	}
	return out, nil
}

// PercentChange returns (future - baseline) / baseline * 100 per cell. The
// grids must share shape, origin and resolution. A null input cell or a
// zero baseline gives a null output cell.
func PercentChange(baseline, future *Grid) (*Grid, error) {
	if !sameGeometry(baseline, future) {
		return nil, model.AggregationError(eris.Errorf(
			"raster: baseline grid %dx%d at (%g, %g) step (%g, %g) does not match future grid %dx%d at (%g, %g) step (%g, %g)",
			baseline.Rows(), baseline.Cols(), baseline.X0, baseline.Y0, baseline.Dx, baseline.Dy,
			future.Rows(), future.Cols(), future.X0, future.Y0, future.Dx, future.Dy))
	}

	out := NewGrid(baseline.Rows(), baseline.Cols(), baseline.X0, baseline.Y0, baseline.Dx, baseline.Dy)
	out.CRS = baseline.CRS
	out.Variable = "pct_change"
	for i, b := range baseline.Data.Elements {
		out.Data.Elements[i] = pctChange(b, future.Data.Elements[i])
	}
	return out, nil
}

func pctChange(b, f float64) float64 {
	if math.IsNaN(b) || math.IsNaN(f) || b == 0 {
		return math.NaN()
	}
	return (f - b) / b * 100
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
