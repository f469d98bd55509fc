// Package export writes the joined county table as GeoJSON and XLSX, and
// the run manifest as YAML.
package export

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/yield-atlas/internal/model"
)

// Columns is the header of the tabular exports.
var Columns = []string{"geoid", "state_code", "county_code", "name", "yield", "yield_source", "pct_change", "pct_change_rounded", "projected_yield"}

// GeoJSON writes counties as a FeatureCollection. Null values are written
// as JSON null.
func GeoJSON(w io.Writer, counties []*model.County) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(counties))}
	for _, c := range counties {
		f := &geojson.Feature{
			ID: c.GEOID,
			Properties: map[string]interface{}{
				"geoid":              c.GEOID,
				"state_code":         c.StateCode,
				"county_code":        c.CountyCode,
				"name":               c.Name,
				"yield":              c.Yield,
				"yield_source":       string(c.YieldSource),
				"pct_change":         c.PctChange,
				"pct_change_rounded": c.RoundedPct(),
				"projected_yield":    c.ProjectedYield,
			},
		}
		if c.Geometry != nil {
			f.Geometry = c.Geometry
		}
		fc.Features = append(fc.Features, f)
	}

	enc := json.NewEncoder(w)
	if err := enc.Encode(&fc); err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	return nil
}

// GeoJSONFile writes counties as GeoJSON to path.
func GeoJSONFile(path string, counties []*model.County) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := GeoJSON(f, counties); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}

// XLSX writes counties to a workbook with one "counties" sheet.
func XLSX(path string, counties []*model.County) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("counties")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range Columns {
		header.AddCell().SetString(name)
	}
	for _, c := range counties {
		row := sheet.AddRow()
		row.AddCell().SetString(c.GEOID)
		row.AddCell().SetInt(c.StateCode)
		row.AddCell().SetInt(c.CountyCode)
		row.AddCell().SetString(c.Name)
		setNullable(row.AddCell(), c.Yield)
		row.AddCell().SetString(string(c.YieldSource))
		setNullable(row.AddCell(), c.PctChange)
		setNullable(row.AddCell(), c.RoundedPct())
		setNullable(row.AddCell(), c.ProjectedYield)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// setNullable leaves the cell empty for nil.
func setNullable(cell *xlsx.Cell, v *float64) {
	if v == nil {
		return
	}
	cell.SetFloat(*v)
}
