package boundary

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ToMultiPolygon converts a shapefile polygon to a geom.MultiPolygon.
// Shapefile shells wind clockwise and holes counter-clockwise; each hole is
// attached to the shell that contains it. Returns nil for non-polygon or
// empty shapes.
func ToMultiPolygon(shape shp.Shape) *geom.MultiPolygon {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	rings := make([][]float64, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}
		if end-start < 4 {
			zap.L().Debug("boundary: skipping degenerate ring", zap.Int32("part", i))
			continue
		}
		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		rings = append(rings, flat)
	}

	var shells, holes [][]float64
	for _, r := range rings {
		if xy.SignedArea(geom.XY, r) > 0 {
			shells = append(shells, r)
		} else {
			holes = append(holes, r)
		}
	}
	// Files written counter-clockwise have no clockwise ring at all; treat
	// every ring as a shell rather than dropping the geometry.
	if len(shells) == 0 {
		shells, holes = holes, nil
	}

	polys := make([][][]float64, len(shells))
	for i, s := range shells {
		polys[i] = [][]float64{s}
	}
	for _, h := range holes {
		owner := -1
		first := geom.Coord{h[0], h[1]}
		for i, s := range shells {
			if xy.IsPointInRing(geom.XY, first, s) {
				owner = i
				break
			}
		}
		if owner < 0 {
			polys = append(polys, [][]float64{h})
			continue
		}
		polys[owner] = append(polys[owner], h)
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, rs := range polys {
		poly := geom.NewPolygon(geom.XY)
		for _, r := range rs {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, r)); err != nil {
				zap.L().Debug("boundary: skipping malformed ring", zap.Int("polygon", i), zap.Error(err))
			}
		}
		if poly.NumLinearRings() == 0 {
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("boundary: skipping malformed polygon part", zap.Int("polygon", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// EncodeWKB converts a county geometry to EWKB bytes with the given SRID.
// Returns nil, nil for a nil geometry.
func EncodeWKB(mp *geom.MultiPolygon, srid int) ([]byte, error) {
	if mp == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(mp.Clone().SetSRID(srid), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: encode WKB")
	}
	return data, nil
}
