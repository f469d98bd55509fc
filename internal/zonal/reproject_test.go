package zonal

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gogeom "github.com/twpayne/go-geom"

	"github.com/sells-group/yield-atlas/internal/model"
)

func squareCounty(geoid string, xmin, ymin, xmax, ymax float64) *model.County {
	mp := gogeom.NewMultiPolygon(gogeom.XY).MustSetCoords([][][]gogeom.Coord{{{
		{xmin, ymin}, {xmin, ymax}, {xmax, ymax}, {xmax, ymin}, {xmin, ymin},
	}}})
	return &model.County{GEOID: geoid, Geometry: mp}
}

func mustCRS(t *testing.T, def string) model.CRS {
	t.Helper()
	crs, err := model.ParseCRS(def)
	require.NoError(t, err)
	return crs
}

func TestReproject_SameCRSKeepsCoordinates(t *testing.T) {
	wgs := mustCRS(t, "+proj=longlat +datum=WGS84 +no_defs")
	counties := []*model.County{squareCounty("17001", -91, 39, -90, 40), {GEOID: "17003"}}

	polys, err := Reproject(counties, wgs, wgs, ReprojectOptions{})
	require.NoError(t, err)
	require.Len(t, polys, 2)
	assert.Nil(t, polys[1])

	b := polys[0].Bounds()
	assert.Equal(t, geom.Point{X: -91, Y: 39}, b.Min)
	assert.Equal(t, geom.Point{X: -90, Y: 40}, b.Max)
	assert.InDelta(t, 1.0, polys[0].Area(), 1e-12)
	// Closing point dropped.
	assert.Len(t, polys[0].Polygons()[0][0], 4)
}

func TestReproject_WrapLongitude(t *testing.T) {
	wgs := mustCRS(t, "+proj=longlat +datum=WGS84 +no_defs")

	polys, err := Reproject([]*model.County{squareCounty("17001", -91, 39, -90, 40)}, wgs, wgs,
		ReprojectOptions{WrapLongitude: true})
	require.NoError(t, err)

	b := polys[0].Bounds()
	assert.InDelta(t, 269.0, b.Min.X, 1e-9)
	assert.InDelta(t, 270.0, b.Max.X, 1e-9)
}

func TestReproject_WrapLongitudeKeepsStraddlingPolygon(t *testing.T) {
	wgs := mustCRS(t, "+proj=longlat +datum=WGS84 +no_defs")
	counties := []*model.County{
		squareCounty("06001", -1, 51, 1, 52),
		squareCounty("06003", -3, 51, -2, 52),
	}

	polys, err := Reproject(counties, wgs, wgs, ReprojectOptions{WrapLongitude: true})
	require.NoError(t, err)

	straddle := polys[0].Bounds()
	assert.InDelta(t, -1.0, straddle.Min.X, 1e-9)
	assert.InDelta(t, 1.0, straddle.Max.X, 1e-9)
	assert.InDelta(t, 2.0, polys[0].Area(), 1e-9)

	west := polys[1].Bounds()
	assert.InDelta(t, 357.0, west.Min.X, 1e-9)
	assert.InDelta(t, 358.0, west.Max.X, 1e-9)
}

func TestReproject_Transforms(t *testing.T) {
	wgs := mustCRS(t, "+proj=longlat +datum=WGS84 +no_defs")
	merc := mustCRS(t, "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs")

	polys, err := Reproject([]*model.County{squareCounty("17001", -90, 0, -89, 1)}, wgs, merc, ReprojectOptions{})
	require.NoError(t, err)

	b := polys[0].Bounds()
	assert.InDelta(t, -10018754.17, b.Min.X, 1.0)
	assert.InDelta(t, 0.0, b.Min.Y, 1.0)
}

func TestReproject_UnparsedCRS(t *testing.T) {
	_, err := Reproject([]*model.County{squareCounty("17001", 0, 0, 1, 1)},
		model.CRS{Def: "a"}, model.CRS{Def: "b"}, ReprojectOptions{})
	require.Error(t, err)
	assert.True(t, model.IsStage(err, model.StageAggregate))
}
