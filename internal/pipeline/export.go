package pipeline

import (
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yield-atlas/internal/export"
	"github.com/sells-group/yield-atlas/internal/model"
	"github.com/sells-group/yield-atlas/internal/render"
)

// Export file names written to render.out_dir.
const (
	GeoJSONFile  = "counties.geojson"
	XLSXFile     = "counties.xlsx"
	ManifestFile = "manifest.yaml"
)

// Export writes the enabled tabular and vector exports and, last, the run
// manifest listing every output.
func (p *Pipeline) Export(res *Result) error {
	ec := p.cfg.Export
	dir := p.cfg.Render.OutDir
	counties := res.Counties()

	if ec.GeoJSON {
		path := filepath.Join(dir, GeoJSONFile)
		if err := export.GeoJSONFile(path, counties); err != nil {
			return model.ExportError(err)
		}
		res.Outputs = append(res.Outputs, path)
	}
	if ec.XLSX {
		path := filepath.Join(dir, XLSXFile)
		if err := export.XLSX(path, counties); err != nil {
			return model.ExportError(err)
		}
		res.Outputs = append(res.Outputs, path)
	}

	res.Manifest = p.manifest(res)
	if ec.Manifest {
		path := filepath.Join(dir, ManifestFile)
		if err := export.WriteManifest(path, res.Manifest); err != nil {
			return model.ExportError(eris.Wrap(err, "pipeline: manifest"))
		}
		res.Outputs = append(res.Outputs, path)
	}

	zap.L().Info("exports written",
		zap.String("component", "pipeline.export"),
		zap.String("dir", dir),
		zap.Int("outputs", len(res.Outputs)),
	)
	return nil
}

func (p *Pipeline) manifest(res *Result) *export.Manifest {
	cfg := p.cfg
	counties := res.Counties()

	m := &export.Manifest{
		RunID:      res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: time.Now().UTC(),
		StateCode:  cfg.Counties.StateCode,
		Inputs: export.Inputs{
			Yield:        cfg.Yield.Path,
			Counties:     cfg.Counties.Path,
			Baseline:     cfg.Raster.Baseline.Path,
			BaselineBand: cfg.Raster.Baseline.Band,
			Future:       cfg.Raster.Future.Path,
			FutureBand:   cfg.Raster.Future.Band,
			Variable:     cfg.Raster.Baseline.Variable,
		},
		Extent: [4]float64{
			cfg.Raster.Extent.XMin, cfg.Raster.Extent.XMax,
			cfg.Raster.Extent.YMin, cfg.Raster.Extent.YMax,
		},
		Weighted: cfg.Zonal.Weighted,
		Classes: export.ClassSummary{
			Yield:  breaks(res.Classes.Yield),
			Change: breaks(res.Classes.Change),
			Panels: breaks(res.Classes.Panels),
		},
		Outputs: append([]string(nil), res.Outputs...),
		Nulls: export.NullSummary{
			PctChange:      countNil(counties, func(c *model.County) *float64 { return c.PctChange }),
			ProjectedYield: countNil(counties, func(c *model.County) *float64 { return c.ProjectedYield }),
		},
	}
	if res.Inputs != nil && res.Inputs.Layer != nil {
		m.Inputs.CountiesCRS = res.Inputs.Layer.CRS.Def
	}

	if r := res.Report; r != nil {
		m.Join = export.JoinSummary{
			Counties:      len(counties),
			Matched:       len(r.Matched),
			Filled:        len(r.Filled),
			UnusedRecords: len(r.UnusedRecords),
		}
		for _, c := range r.Filled {
			m.Join.FilledGEOIDs = append(m.Join.FilledGEOIDs, c.GEOID)
		}
		if r.Fallback != nil {
			m.Join.FallbackYield = r.Fallback.Yield
		}
	}
	if cfg.Export.Manifest {
		m.Outputs = append(m.Outputs, filepath.Join(cfg.Render.OutDir, ManifestFile))
	}
	return m
}

func breaks(c *render.Classes) []float64 {
	if c == nil {
		return nil
	}
	return c.Breaks
}
