package render

import (
	"image/color"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sells-group/yield-atlas/internal/model"
)

// Map describes one choropleth panel. Values is index-aligned with
// Counties.
type Map struct {
	Title     string
	Counties  []*model.County
	Values    []*float64
	Classes   *Classes
	Colors    []color.Color
	Labels    bool
	Precision int
	Legend    bool
	// Aspect is the width/height ratio of the drawing area; the data
	// range is padded to keep map units square. Zero skips the padding.
	Aspect float64
}

func (m Map) validate() error {
	if len(m.Values) != len(m.Counties) {
		return eris.Errorf("render: %d counties but %d values", len(m.Counties), len(m.Values))
	}
	if m.Classes == nil {
		return eris.New("render: classes are required")
	}
	if m.Classes.N() > 1 && len(m.Colors) < m.Classes.N() {
		return eris.Errorf("render: %d classes but %d colors", m.Classes.N(), len(m.Colors))
	}
	if m.Classes.N() == 1 && len(m.Colors) == 0 {
		return eris.New("render: no colors")
	}
	return nil
}

// colorOf returns the fill for a value.
func (m Map) colorOf(v *float64) color.Color {
	idx := m.Classes.Index(model.Value(v))
	if idx < 0 {
		return NoDataColor
	}
	if m.Classes.N() == 1 {
		return m.Colors[len(m.Colors)/2]
	}
	return m.Colors[idx]
}

// legendEntries returns one swatch per class, plus a no-data entry when
// some value is unclassified.
func (m Map) legendEntries() ([]string, []color.Color) {
	names := m.Classes.Labels(m.Precision)
	colors := make([]color.Color, len(names))
	for i := range names {
		if m.Classes.N() == 1 {
			colors[i] = m.Colors[len(m.Colors)/2]
		} else {
			colors[i] = m.Colors[i]
		}
	}
	for _, v := range m.Values {
		if m.Classes.Index(model.Value(v)) < 0 {
			names = append(names, "No data")
			colors = append(colors, NoDataColor)
			break
		}
	}
	return names, colors
}

// Choropleth draws filled county polygons colored by class, with optional
// value labels and legend.
func Choropleth(m Map) (*plot.Plot, error) {
	if err := m.validate(); err != nil {
		return nil, model.RenderError(err)
	}

	p := plot.New()
	p.Title.Text = m.Title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.HideAxes()

	var bounds *geom.Bounds
	for i, c := range m.Counties {
		if c.Geometry == nil {
			continue
		}
		poly, err := countyPolygon(c.Geometry)
		if err != nil {
			return nil, model.RenderError(eris.Wrapf(err, "render: county %s", c.GEOID))
		}
		if poly == nil {
			continue
		}
		poly.Color = m.colorOf(m.Values[i])
		poly.LineStyle.Color = color.Gray{Y: 0x60}
		poly.LineStyle.Width = vg.Points(0.4)
		p.Add(poly)

		if bounds == nil {
			bounds = c.Geometry.Bounds().Clone()
		} else {
			bounds.Extend(c.Geometry)
		}
	}
	if bounds == nil {
		return nil, model.RenderError(eris.New("render: no county geometry to draw"))
	}
	setRange(p, bounds, m.Aspect)

	if m.Labels {
		labels, err := valueLabels(m)
		if err != nil {
			return nil, model.RenderError(err)
		}
		for _, l := range labels {
			p.Add(l)
		}
	}

	if m.Legend {
		names, colors := m.legendEntries()
		for i, name := range names {
			p.Legend.Add(name, swatch{color: colors[i]})
		}
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.TextStyle.Font.Size = vg.Points(9)
	}

	zap.L().Debug("choropleth built",
		zap.String("component", "render"),
		zap.String("title", m.Title),
		zap.Int("counties", len(m.Counties)),
		zap.Int("classes", m.Classes.N()),
	)
	return p, nil
}

// countyPolygon converts a multipolygon to a gonum polygon. Shapefile
// shells and holes wind in opposite directions, so the renderers cut the
// holes out.
func countyPolygon(mp *geom.MultiPolygon) (*plotter.Polygon, error) {
	var rings []plotter.XYer
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for j := 0; j < poly.NumLinearRings(); j++ {
			coords := poly.LinearRing(j).Coords()
			xys := make(plotter.XYs, len(coords))
			for k, c := range coords {
				xys[k] = plotter.XY{X: c.X(), Y: c.Y()}
			}
			rings = append(rings, xys)
		}
	}
	if len(rings) == 0 {
		return nil, nil
	}
	return plotter.NewPolygon(rings...)
}

// setRange fits the axes to b, padding one axis so map units are square
// for the given width/height ratio.
func setRange(p *plot.Plot, b *geom.Bounds, aspect float64) {
	xmin, ymin := b.Min(0), b.Min(1)
	xmax, ymax := b.Max(0), b.Max(1)
	w, h := xmax-xmin, ymax-ymin
	if aspect > 0 && w > 0 && h > 0 {
		if w/h < aspect {
			pad := (h*aspect - w) / 2
			xmin, xmax = xmin-pad, xmax+pad
		} else {
			pad := (w/aspect - h) / 2
			ymin, ymax = ymin-pad, ymax+pad
		}
	}
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax
}

// haloOffsets are the directions of the white copies drawn under each
// label.
var haloOffsets = []vg.Point{
	{X: -0.8, Y: 0}, {X: 0.8, Y: 0}, {X: 0, Y: -0.8}, {X: 0, Y: 0.8},
	{X: -0.6, Y: -0.6}, {X: 0.6, Y: 0.6}, {X: -0.6, Y: 0.6}, {X: 0.6, Y: -0.6},
}

// valueLabels places each county's value at its centroid as dark text over
// a white halo.
func valueLabels(m Map) ([]*plotter.Labels, error) {
	var data plotter.XYLabels
	for i, c := range m.Counties {
		v := m.Values[i]
		if c.Geometry == nil || v == nil || math.IsNaN(*v) {
			continue
		}
		center, err := xy.Centroid(c.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "render: centroid of %s", c.GEOID)
		}
		data.XYs = append(data.XYs, plotter.XY{X: center.X(), Y: center.Y()})
		data.Labels = append(data.Labels, strconv.FormatFloat(*v, 'f', m.Precision, 64))
	}
	if len(data.Labels) == 0 {
		return nil, nil
	}

	build := func(c color.Color, offset vg.Point) (*plotter.Labels, error) {
		l, err := plotter.NewLabels(data)
		if err != nil {
			return nil, eris.Wrap(err, "render: labels")
		}
		for i := range l.TextStyle {
			l.TextStyle[i].Color = c
			l.TextStyle[i].Font.Size = vg.Points(6)
			l.TextStyle[i].XAlign = draw.XCenter
			l.TextStyle[i].YAlign = draw.YCenter
		}
		l.Offset = offset
		return l, nil
	}

	out := make([]*plotter.Labels, 0, len(haloOffsets)+1)
	for _, off := range haloOffsets {
		l, err := build(color.White, off)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	l, err := build(color.Black, vg.Point{})
	if err != nil {
		return nil, err
	}
	return append(out, l), nil
}

// swatch is a filled legend thumbnail.
type swatch struct {
	color color.Color
}

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.color, c.ClipPolygonY(pts))
	outline := append(pts, pts[0])
	c.StrokeLines(draw.LineStyle{Color: color.Gray{Y: 0x60}, Width: vg.Points(0.4)}, c.ClipLinesY(outline)...)
}
