package render

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"gonum.org/v1/plot/vg"

	"github.com/sells-group/yield-atlas/internal/model"
)

func square(geoid, name string, x, y float64) *model.County {
	mp := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{x, y}, {x, y + 1}, {x + 1, y + 1}, {x + 1, y}, {x, y},
	}}})
	return &model.County{GEOID: geoid, Name: name, Geometry: mp}
}

func testMap(t *testing.T) Map {
	t.Helper()
	counties := []*model.County{
		square("17001", "Adams", -91, 40),
		square("17003", "Alexander", -90, 40),
		square("17005", "Bond", -89, 40),
	}
	values := []*float64{model.Float(150), model.Float(200), nil}
	classes, err := ClassesOf(values, 5)
	require.NoError(t, err)
	colors, err := Ramp("YlGn", 5, false)
	require.NoError(t, err)
	return Map{
		Title:    "Corn yield (bu/ac)",
		Counties: counties,
		Values:   values,
		Classes:  classes,
		Colors:   colors,
		Labels:   true,
		Legend:   true,
	}
}

func TestRamp(t *testing.T) {
	colors, err := Ramp("YlGn", 5, false)
	require.NoError(t, err)
	assert.Len(t, colors, 5)

	rev, err := Ramp("YlGn", 5, true)
	require.NoError(t, err)
	assert.Equal(t, colors[0], rev[4])
	assert.Equal(t, colors[4], rev[0])
}

func TestRamp_SmallCounts(t *testing.T) {
	three, err := Ramp("RdYlGn", 3, false)
	require.NoError(t, err)

	two, err := Ramp("RdYlGn", 2, false)
	require.NoError(t, err)
	assert.Equal(t, []color.Color{three[0], three[2]}, two)

	one, err := Ramp("RdYlGn", 1, false)
	require.NoError(t, err)
	assert.Equal(t, []color.Color{three[1]}, one)
}

func TestRamp_Errors(t *testing.T) {
	_, err := Ramp("NoSuchPalette", 5, false)
	require.Error(t, err)
	assert.True(t, model.IsStage(err, model.StageRender))

	_, err = Ramp("YlGn", 0, false)
	assert.Error(t, err)
}

func TestMap_ColorOf(t *testing.T) {
	m := testMap(t)

	assert.Equal(t, m.Colors[0], m.colorOf(model.Float(150)))
	assert.Equal(t, m.Colors[4], m.colorOf(model.Float(200)))
	assert.Equal(t, NoDataColor, m.colorOf(nil))
}

func TestMap_LegendEntries(t *testing.T) {
	m := testMap(t)

	names, colors := m.legendEntries()
	require.Len(t, names, 6)
	assert.Equal(t, "150 - 160", names[0])
	assert.Equal(t, "No data", names[5])
	assert.Equal(t, NoDataColor, colors[5])

	m.Values[2] = model.Float(170)
	names, _ = m.legendEntries()
	assert.Len(t, names, 5)
}

func TestChoropleth(t *testing.T) {
	m := testMap(t)
	m.Aspect = 1

	p, err := Choropleth(m)
	require.NoError(t, err)
	assert.Equal(t, "Corn yield (bu/ac)", p.Title.Text)
	// Three columns of unit squares padded to a square view.
	assert.InDelta(t, -91.0, p.X.Min, 1e-9)
	assert.InDelta(t, -88.0, p.X.Max, 1e-9)
	assert.InDelta(t, 39.0, p.Y.Min, 1e-9)
	assert.InDelta(t, 42.0, p.Y.Max, 1e-9)
}

func TestChoropleth_Validation(t *testing.T) {
	m := testMap(t)
	m.Values = m.Values[:2]
	_, err := Choropleth(m)
	require.Error(t, err)
	assert.True(t, model.IsStage(err, model.StageRender))

	m = testMap(t)
	m.Colors = m.Colors[:3]
	_, err = Choropleth(m)
	assert.Error(t, err)

	m = testMap(t)
	m.Classes = nil
	_, err = Choropleth(m)
	assert.Error(t, err)
}

func TestChoropleth_NoGeometry(t *testing.T) {
	m := testMap(t)
	for _, c := range m.Counties {
		c.Geometry = nil
	}
	_, err := Choropleth(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no county geometry")
}

func TestSave(t *testing.T) {
	p, err := Choropleth(testMap(t))
	require.NoError(t, err)

	for _, name := range []string{"yield.png", "yield.svg"} {
		path := filepath.Join(t.TempDir(), "nested", name)
		require.NoError(t, Save(p, 4*vg.Inch, 5*vg.Inch, path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestSideBySide(t *testing.T) {
	left := testMap(t)
	right := testMap(t)
	right.Title = "Projected yield"
	right.Values = []*float64{model.Float(160), model.Float(190), model.Float(175)}
	shared, err := SharedClasses(5, left.Values, right.Values)
	require.NoError(t, err)
	left.Classes, right.Classes = shared, shared

	path := filepath.Join(t.TempDir(), "panels.png")
	require.NoError(t, SideBySide(left, right, 10*vg.Inch, 5*vg.Inch, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSideBySide_RequiresSharedClasses(t *testing.T) {
	left := testMap(t)
	right := testMap(t)

	err := SideBySide(left, right, 10*vg.Inch, 5*vg.Inch, filepath.Join(t.TempDir(), "x.png"))
	require.Error(t, err)
	assert.True(t, model.IsStage(err, model.StageRender))
}

func TestSideBySide_TooSmall(t *testing.T) {
	left := testMap(t)
	right := left

	err := SideBySide(left, right, 1*vg.Inch, 5*vg.Inch, filepath.Join(t.TempDir(), "x.png"))
	assert.Error(t, err)
}
