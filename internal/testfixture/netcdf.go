package testfixture

import (
	"os"

	"github.com/ctessum/cdf"
	"github.com/rotisserie/eris"
)

// Raster describes a fixture netCDF file holding one [band, y, x] float32
// variable plus 1-D coordinate variables. Bands[b][r][c] is indexed in the
// order of Ys, so a descending Ys writes a north-up file.
type Raster struct {
	Variable string
	XName    string
	YName    string
	Xs       []float64
	Ys       []float64
	Bands    [][][]float64
	Fill     *float32
}

// WriteNetCDF writes r to path.
func WriteNetCDF(path string, r Raster) error {
	nb, ny, nx := len(r.Bands), len(r.Ys), len(r.Xs)

	h := cdf.NewHeader([]string{"band", r.YName, r.XName}, []int{nb, ny, nx})
	h.AddAttribute("", "comment", "yield-atlas test fixture")
	h.AddVariable(r.XName, []string{r.XName}, []float64{0})
	h.AddVariable(r.YName, []string{r.YName}, []float64{0})
	h.AddVariable(r.Variable, []string{"band", r.YName, r.XName}, []float32{0})
	h.AddAttribute(r.Variable, "units", "t/ha")
	if r.Fill != nil {
		h.AddAttribute(r.Variable, "_FillValue", []float32{*r.Fill})
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "testfixture: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	cf, err := cdf.Create(f, h)
	if err != nil {
		return eris.Wrap(err, "testfixture: write netCDF header")
	}

	if _, err := cf.Writer(r.XName, []int{0}, []int{nx}).Write(r.Xs); err != nil {
		return eris.Wrap(err, "testfixture: write x coordinates")
	}
	if _, err := cf.Writer(r.YName, []int{0}, []int{ny}).Write(r.Ys); err != nil {
		return eris.Wrap(err, "testfixture: write y coordinates")
	}

	data := make([]float32, 0, nb*ny*nx)
	for _, band := range r.Bands {
		for _, row := range band {
			for _, v := range row {
				data = append(data, float32(v))
			}
		}
	}
	if _, err := cf.Writer(r.Variable, []int{0, 0, 0}, []int{nb, ny, nx}).Write(data); err != nil {
		return eris.Wrap(err, "testfixture: write variable")
	}
	return eris.Wrap(cdf.UpdateNumRecs(f), "testfixture: update record count")
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 {
	return &v
}
