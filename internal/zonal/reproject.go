package zonal

import (
	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	gogeom "github.com/twpayne/go-geom"

	"github.com/sells-group/yield-atlas/internal/model"
)

// ReprojectOptions configures Reproject.
type ReprojectOptions struct {
	// WrapLongitude shifts polygons lying wholly at negative x by 360 after the
	// transform, for rasters on a 0-360 longitude axis.
	WrapLongitude bool
}

// Reproject converts county geometries into the raster's coordinate
// system. The rasters are never resampled; polygons move instead. The
// result is index-aligned with counties; a county without geometry gets a
// nil entry.
func Reproject(counties []*model.County, from, to model.CRS, opts ReprojectOptions) ([]geom.Polygonal, error) {
	var transform func(geom.Polygonal) (geom.Polygonal, error)
	if !from.Same(to) {
		if from.SR == nil || to.SR == nil {
			return nil, model.AggregationError(eris.New("zonal: reprojection needs parsed source and target CRS"))
		}
		tr, err := from.SR.NewTransform(to.SR)
		if err != nil {
			return nil, model.AggregationError(eris.Wrap(err, "zonal: build CRS transform"))
		}
		transform = func(p geom.Polygonal) (geom.Polygonal, error) {
			g, err := p.Transform(tr)
			if err != nil {
				return nil, err
			}
			return g.(geom.Polygonal), nil
		}
	}

	out := make([]geom.Polygonal, len(counties))
	for i, c := range counties {
		if c.Geometry == nil {
			continue
		}
		p := geom.Polygonal(toCtessum(c.Geometry))
		if transform != nil {
			var err error
			if p, err = transform(p); err != nil {
				return nil, model.AggregationError(eris.Wrapf(err, "zonal: reproject county %s", c.GEOID))
			}
		}
		if opts.WrapLongitude {
			p = wrapLongitude(p)
		}
		out[i] = p
	}
	return out, nil
}

// toCtessum converts a go-geom multipolygon, dropping each ring's closing
// point.
func toCtessum(mp *gogeom.MultiPolygon) geom.MultiPolygon {
	out := make(geom.MultiPolygon, 0, mp.NumPolygons())
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		var rings geom.Polygon
		for j := 0; j < poly.NumLinearRings(); j++ {
			coords := poly.LinearRing(j).Coords()
			if n := len(coords); n > 1 && coords[0].Equal(gogeom.XY, coords[n-1]) {
				coords = coords[:n-1]
			}
			path := make(geom.Path, len(coords))
			for k, c := range coords {
				path[k] = geom.Point{X: c.X(), Y: c.Y()}
			}
			rings = append(rings, path)
		}
		out = append(out, rings)
	}
	return out
}

// wrapLongitude shifts each polygon wholly west of x=0 by 360. Polygons
// that straddle x=0 are left in place so no ring is torn apart.
func wrapLongitude(p geom.Polygonal) geom.Polygonal {
	var out geom.MultiPolygon
	for _, poly := range p.Polygons() {
		shift := 0.0
		if b := poly.Bounds(); b != nil && b.Max.X < 0 {
			shift = 360
		}
		np := make(geom.Polygon, len(poly))
		for i, ring := range poly {
			np[i] = make(geom.Path, len(ring))
			for j, pt := range ring {
				pt.X += shift
				np[i][j] = pt
			}
		}
		out = append(out, np)
	}
	return out
}
