package raster

import (
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yield-atlas/internal/model"
)

// Options selects one band of a netCDF variable.
type Options struct {
	Variable string
	Band     int // 1-based
	XName    string
	YName    string
	CRS      model.CRS
}

// VariableInfo describes one variable of a netCDF file.
type VariableInfo struct {
	Name       string
	Dimensions []string
	Lengths    []int
}

// Bands returns the number of bands of a [band, y, x] variable, or 1 for a
// two-dimensional one.
func (v VariableInfo) Bands() int {
	if len(v.Lengths) == 3 {
		return v.Lengths[0]
	}
	return 1
}

// Describe lists the variables of a netCDF file with their dimensions.
func Describe(path string) ([]VariableInfo, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, model.LoadError(eris.Wrapf(err, "raster: open %s", path))
	}
	defer fh.Close() //nolint:errcheck

	f, err := cdf.Open(fh)
	if err != nil {
		return nil, model.LoadError(eris.Wrapf(err, "raster: read netCDF header %s", path))
	}

	var out []VariableInfo
	for _, name := range f.Header.Variables() {
		out = append(out, VariableInfo{
			Name:       name,
			Dimensions: f.Header.Dimensions(name),
			Lengths:    f.Header.Lengths(name),
		})
	}
	return out, nil
}

// ReadNetCDF reads one band of a [band, y, x] (or [y, x]) variable. The x
// and y coordinate variables give cell centers and must be regularly
// spaced. Fill and missing values become NaN; scale_factor and add_offset
// are applied. Every failure is a load error.
func ReadNetCDF(path string, opts Options) (*Grid, error) {
	g, err := readNetCDF(path, opts)
	if err != nil {
		return nil, model.LoadError(err)
	}
	return g, nil
}

func readNetCDF(path string, opts Options) (*Grid, error) {
	log := zap.L().With(
		zap.String("component", "raster.netcdf"),
		zap.String("path", path),
		zap.String("variable", opts.Variable),
		zap.Int("band", opts.Band),
	)

	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	f, err := cdf.Open(fh)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: read netCDF header %s", path)
	}

	if !hasVariable(f, opts.Variable) {
		return nil, eris.Errorf("raster: variable %q not found in %s", opts.Variable, path)
	}
	dims := f.Header.Lengths(opts.Variable)
	var bands, ny, nx int
	switch len(dims) {
	case 3:
		bands, ny, nx = dims[0], dims[1], dims[2]
	case 2:
		bands, ny, nx = 1, dims[0], dims[1]
	default:
		return nil, eris.Errorf("raster: variable %q has %d dimensions, want [band, y, x] or [y, x]",
			opts.Variable, len(dims))
	}
	if opts.Band < 1 || opts.Band > bands {
		return nil, eris.Errorf("raster: band %d out of range 1..%d for %q", opts.Band, bands, opts.Variable)
	}

	xs, err := readCoordinate(f, opts.XName, nx)
	if err != nil {
		return nil, err
	}
	ys, err := readCoordinate(f, opts.YName, ny)
	if err != nil {
		return nil, err
	}
	dx, err := spacing(xs, opts.XName)
	if err != nil {
		return nil, err
	}
	dy, err := spacing(ys, opts.YName)
	if err != nil {
		return nil, err
	}
	if dx < 0 {
		return nil, eris.Errorf("raster: %s coordinates must increase", opts.XName)
	}
	flipY := dy < 0
	if flipY {
		dy = -dy
	}

	begin := make([]int, len(dims))
	end := make([]int, len(dims))
	copy(end, dims)
	if len(dims) == 3 {
		begin[0] = opts.Band - 1
		end[0] = opts.Band
	}
	values, err := readFloats(f, opts.Variable, begin, end)
	if err != nil {
		return nil, err
	}
	if len(values) != ny*nx {
		return nil, eris.Errorf("raster: read %d values for %q, want %d", len(values), opts.Variable, ny*nx)
	}

	fills := attributeFloats(f, opts.Variable, "_FillValue")
	fills = append(fills, attributeFloats(f, opts.Variable, "missing_value")...)
	scale, offset := 1.0, 0.0
	if s := attributeFloats(f, opts.Variable, "scale_factor"); len(s) > 0 {
		scale = s[0]
	}
	if o := attributeFloats(f, opts.Variable, "add_offset"); len(o) > 0 {
		offset = o[0]
	}

	y0 := ys[0]
	if flipY {
		y0 = ys[ny-1]
	}
	g := NewGrid(ny, nx, xs[0]-dx/2, y0-dy/2, dx, dy)
	g.CRS = opts.CRS
	g.Variable = opts.Variable
	g.Band = opts.Band

	var nulls int
	for r := 0; r < ny; r++ {
		src := r
		if flipY {
			src = ny - 1 - r
		}
		for c := 0; c < nx; c++ {
			v := values[src*nx+c]
			if isFill(v, fills) {
				nulls++
				continue
			}
			g.Set(v*scale+offset, r, c)
		}
	}

	log.Info("raster band loaded",
		zap.Int("rows", ny),
		zap.Int("cols", nx),
		zap.Float64("dx", dx),
		zap.Float64("dy", dy),
		zap.Bool("flipped", flipY),
		zap.Int("null_cells", nulls),
	)
	return g, nil
}

func hasVariable(f *cdf.File, name string) bool {
	for _, v := range f.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

func readCoordinate(f *cdf.File, name string, n int) ([]float64, error) {
	if !hasVariable(f, name) {
		return nil, eris.Errorf("raster: coordinate variable %q not found", name)
	}
	lengths := f.Header.Lengths(name)
	if len(lengths) != 1 || lengths[0] != n {
		return nil, eris.Errorf("raster: coordinate %q has shape %v, want [%d]", name, lengths, n)
	}
	return readFloats(f, name, nil, nil)
}

// spacing returns the step of a regularly spaced coordinate axis.
func spacing(coords []float64, name string) (float64, error) {
	if len(coords) < 2 {
		return 0, eris.Errorf("raster: coordinate %q needs at least two values to derive cell size", name)
	}
	step := coords[1] - coords[0]
	if step == 0 {
		return 0, eris.Errorf("raster: coordinate %q has zero spacing", name)
	}
	tol := 1e-6 * math.Abs(step)
	for i := 2; i < len(coords); i++ {
		if math.Abs((coords[i]-coords[i-1])-step) > tol {
			return 0, eris.Errorf("raster: coordinate %q is irregularly spaced at index %d", name, i)
		}
	}
	return step, nil
}

// readFloats reads a hyperslab of any numeric variable as float64.
func readFloats(f *cdf.File, name string, begin, end []int) ([]float64, error) {
	n := 1
	lengths := f.Header.Lengths(name)
	for i, l := range lengths {
		if begin != nil && end != nil {
			l = end[i] - begin[i]
		}
		n *= l
	}

	r := f.Reader(name, begin, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, eris.Wrapf(err, "raster: read %s", name)
	}
	out, ok := toFloats(buf)
	if !ok {
		return nil, eris.Errorf("raster: variable %q has unsupported type %T", name, buf)
	}
	return out, nil
}

func attributeFloats(f *cdf.File, variable, attr string) []float64 {
	v := f.Header.GetAttribute(variable, attr)
	if v == nil {
		return nil
	}
	out, _ := toFloats(v)
	return out
}

func toFloats(v interface{}) ([]float64, bool) {
	var out []float64
	switch t := v.(type) {
	case []float64:
		out = append(out, t...)
	case []float32:
		for _, x := range t {
			out = append(out, float64(x))
		}
	case []int32:
		for _, x := range t {
			out = append(out, float64(x))
		}
	case []int16:
		for _, x := range t {
			out = append(out, float64(x))
		}
	case []int8:
		for _, x := range t {
			out = append(out, float64(x))
		}
	default:
		return nil, false
	}
	return out, true
}

func isFill(v float64, fills []float64) bool {
	if math.IsNaN(v) {
		return true
	}
	for _, fv := range fills {
		if v == fv || (math.Abs(fv) >= 1e30 && math.Abs(v-fv) <= 1e-6*math.Abs(fv)) {
			return true
		}
	}
	return false
}
