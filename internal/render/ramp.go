package render

import (
	"image/color"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot/palette/brewer"

	"github.com/sells-group/yield-atlas/internal/model"
)

// NoDataColor fills counties without a value.
var NoDataColor color.Color = color.Gray{Y: 0xbe}

// Ramp returns n colors from the named ColorBrewer palette, optionally
// reversed. Two-color ramps take the ends of the three-color palette.
func Ramp(name string, n int, reverse bool) ([]color.Color, error) {
	if n < 1 {
		return nil, model.RenderError(eris.Errorf("render: ramp needs at least one color, got %d", n))
	}
	size := n
	if size < 3 {
		size = 3
	}
	pal, err := brewer.GetPalette(brewer.TypeAny, name, size)
	if err != nil {
		return nil, model.RenderError(eris.Wrapf(err, "render: palette %s with %d colors", name, size))
	}
	colors := pal.Colors()
	switch n {
	case 1:
		colors = []color.Color{colors[len(colors)/2]}
	case 2:
		colors = []color.Color{colors[0], colors[len(colors)-1]}
	}

	out := make([]color.Color, len(colors))
	copy(out, colors)
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}
