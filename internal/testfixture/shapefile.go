// Package testfixture writes small on-disk inputs (county shapefiles,
// netCDF rasters, yield tables) for tests, using the same libraries that
// read them.
package testfixture

import (
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// CountyShape is one county record of a fixture shapefile. Rings are
// closed lists of x/y pairs; write shells clockwise and holes
// counter-clockwise, as shapefiles expect.
type CountyShape struct {
	StateFP  string
	CountyFP string
	Name     string
	Rings    [][][2]float64
}

// Rect returns a clockwise closed rectangle ring.
func Rect(xmin, ymin, xmax, ymax float64) [][2]float64 {
	return [][2]float64{{xmin, ymin}, {xmin, ymax}, {xmax, ymax}, {xmax, ymin}, {xmin, ymin}}
}

// Reverse returns a ring with its winding flipped.
func Reverse(ring [][2]float64) [][2]float64 {
	out := make([][2]float64, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// WriteCounties writes a polygon shapefile with STATEFP, COUNTYFP and NAME
// attributes. When prj is non-empty it is written as the .prj sidecar.
func WriteCounties(path string, counties []CountyShape, prj string) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "testfixture: create %s", path)
	}
	defer w.Close()

	fields := []shp.Field{
		shp.StringField("STATEFP", 2),
		shp.StringField("COUNTYFP", 3),
		shp.StringField("NAME", 40),
	}
	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "testfixture: set fields")
	}

	for _, c := range counties {
		parts := make([][]shp.Point, len(c.Rings))
		for i, ring := range c.Rings {
			pts := make([]shp.Point, len(ring))
			for j, p := range ring {
				pts[j] = shp.Point{X: p[0], Y: p[1]}
			}
			parts[i] = pts
		}
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		row := int(w.Write(&poly))
		for i, v := range []string{c.StateFP, c.CountyFP, c.Name} {
			if err := w.WriteAttribute(row, i, v); err != nil {
				return eris.Wrapf(err, "testfixture: write attribute %d of row %d", i, row)
			}
		}
	}

	if prj != "" {
		prjPath := strings.TrimSuffix(path, ".shp") + ".prj"
		if err := os.WriteFile(prjPath, []byte(prj), 0o644); err != nil {
			return eris.Wrap(err, "testfixture: write prj")
		}
	}
	return nil
}
