// Package raster reads climate-model yield rasters and performs the
// cell-wise operations of the aggregation stage: cropping to an extent and
// computing percentage change between two bands.
package raster

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"

	"github.com/sells-group/yield-atlas/internal/model"
)

// Grid is one band of a regular raster. Data is indexed [row, col] with row
// 0 the southernmost row. Null cells hold NaN.
type Grid struct {
	Data     *sparse.DenseArray
	X0, Y0   float64 // south-west corner of cell [0, 0]
	Dx, Dy   float64
	CRS      model.CRS
	Variable string
	Band     int
}

// Extent is an axis-aligned window in a grid's native units.
type Extent struct {
	XMin, XMax, YMin, YMax float64
}

// Valid reports whether the extent has positive width and height.
func (e Extent) Valid() bool {
	return e.XMin < e.XMax && e.YMin < e.YMax &&
		!math.IsNaN(e.XMin) && !math.IsNaN(e.XMax) && !math.IsNaN(e.YMin) && !math.IsNaN(e.YMax)
}

// NewGrid returns a grid of ny rows and nx columns with every cell null.
func NewGrid(ny, nx int, x0, y0, dx, dy float64) *Grid {
	data := sparse.ZerosDense(ny, nx)
	for i := range data.Elements {
		data.Elements[i] = math.NaN()
	}
	return &Grid{Data: data, X0: x0, Y0: y0, Dx: dx, Dy: dy}
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.Data.Shape[0] }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.Data.Shape[1] }

// At returns the value of cell [row, col].
func (g *Grid) At(row, col int) float64 { return g.Data.Get(row, col) }

// Set sets the value of cell [row, col].
func (g *Grid) Set(v float64, row, col int) { g.Data.Set(v, row, col) }

// Extent returns the outer edges of the grid.
func (g *Grid) Extent() Extent {
	return Extent{
		XMin: g.X0,
		XMax: g.X0 + float64(g.Cols())*g.Dx,
		YMin: g.Y0,
		YMax: g.Y0 + float64(g.Rows())*g.Dy,
	}
}

// CellBounds returns the bounding box of cell [row, col].
func (g *Grid) CellBounds(row, col int) *geom.Bounds {
	x := g.X0 + float64(col)*g.Dx
	y := g.Y0 + float64(row)*g.Dy
	return &geom.Bounds{
		Min: geom.Point{X: x, Y: y},
		Max: geom.Point{X: x + g.Dx, Y: y + g.Dy},
	}
}

// ValidCount returns the number of non-null cells.
func (g *Grid) ValidCount() int {
	n := 0
	for _, v := range g.Data.Elements {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Values returns the non-null cell values in storage order.
func (g *Grid) Values() []float64 {
	out := make([]float64, 0, len(g.Data.Elements))
	for _, v := range g.Data.Elements {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// sameGeometry reports whether a and b share shape, origin and resolution.
func sameGeometry(a, b *Grid) bool {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return false
	}
	tol := 1e-9 * math.Max(math.Abs(a.Dx), math.Abs(a.Dy))
	return math.Abs(a.X0-b.X0) <= tol && math.Abs(a.Y0-b.Y0) <= tol &&
		math.Abs(a.Dx-b.Dx) <= tol && math.Abs(a.Dy-b.Dy) <= tol
}
