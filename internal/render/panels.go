package render

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sells-group/yield-atlas/internal/model"
)

// sideLegendWidth is the strip on the right of a two-panel figure that
// holds the shared legend.
const sideLegendWidth = 1.4 * vg.Inch

// SharedClasses classifies the union of both value sets so two panels can
// share one legend.
func SharedClasses(n int, a, b []*float64) (*Classes, error) {
	all := make([]*float64, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return ClassesOf(all, n)
}

// Save writes a plot to path; the format follows the file extension.
func Save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.RenderError(eris.Wrap(err, "render: create output dir"))
	}
	if err := p.Save(w, h, path); err != nil {
		return model.RenderError(eris.Wrapf(err, "render: save %s", path))
	}
	return nil
}

// SideBySide draws two maps next to each other with one legend on the
// right. Both maps must use the same classes and colors.
func SideBySide(left, right Map, w, h vg.Length, path string) error {
	if left.Classes != right.Classes {
		return model.RenderError(eris.New("render: side-by-side panels must share classes"))
	}
	panelW := (w - sideLegendWidth) / 2
	if panelW <= 0 || h <= 0 {
		return model.RenderError(eris.Errorf("render: figure %vx%v too small", w, h))
	}

	left.Legend, right.Legend = false, false
	left.Aspect = float64(panelW / h)
	right.Aspect = left.Aspect
	lp, err := Choropleth(left)
	if err != nil {
		return err
	}
	rp, err := Choropleth(right)
	if err != nil {
		return err
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "png"
	}
	c, err := draw.NewFormattedCanvas(w, h, format)
	if err != nil {
		return model.RenderError(eris.Wrapf(err, "render: canvas for %s", path))
	}
	dc := draw.New(c)

	maps := draw.Crop(dc, 0, -sideLegendWidth, 0, 0)
	tiles := draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Points(6), PadY: vg.Points(6)}
	canvases := plot.Align([][]*plot.Plot{{lp, rp}}, tiles, maps)
	lp.Draw(canvases[0][0])
	rp.Draw(canvases[0][1])

	legend := plot.NewLegend()
	legend.Top = true
	legend.TextStyle.Font.Size = vg.Points(9)
	names, colors := sharedLegend(left, right)
	for i, name := range names {
		legend.Add(name, swatch{color: colors[i]})
	}
	legend.Draw(draw.Crop(dc, w-sideLegendWidth, 0, 0, -vg.Points(24)))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return model.RenderError(eris.Wrap(err, "render: create output dir"))
	}
	f, err := os.Create(path)
	if err != nil {
		return model.RenderError(eris.Wrapf(err, "render: create %s", path))
	}
	if _, err := c.WriteTo(f); err != nil {
		_ = f.Close()
		return model.RenderError(eris.Wrapf(err, "render: write %s", path))
	}
	if err := f.Close(); err != nil {
		return model.RenderError(eris.Wrapf(err, "render: close %s", path))
	}
	return nil
}

// sharedLegend lists the class entries once, with a no-data entry when
// either panel has unclassified values.
func sharedLegend(left, right Map) ([]string, []color.Color) {
	names, colors := left.legendEntries()
	rn, rc := right.legendEntries()
	if len(rn) > len(names) {
		return rn, rc
	}
	return names, colors
}
