package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yield-atlas/internal/boundary"
	"github.com/sells-group/yield-atlas/internal/config"
	"github.com/sells-group/yield-atlas/internal/match"
	"github.com/sells-group/yield-atlas/internal/model"
	"github.com/sells-group/yield-atlas/internal/raster"
	"github.com/sells-group/yield-atlas/internal/yield"
	"github.com/sells-group/yield-atlas/internal/zonal"
)

// LoadInputs reads the yield table, the county layer and both raster bands.
func (p *Pipeline) LoadInputs(ctx context.Context) (*Inputs, error) {
	log := zap.L().With(zap.String("component", "pipeline.load"))
	cfg := p.cfg

	records, err := yield.Load(ctx, cfg.Yield.Path, YieldOptions(cfg.Yield))
	if err != nil {
		return nil, err
	}

	layer, err := boundary.Load(cfg.Counties.Path, BoundaryOptions(cfg.Counties))
	if err != nil {
		return nil, err
	}
	log.Info("counties loaded",
		zap.String("path", cfg.Counties.Path),
		zap.Int("counties", len(layer.Counties)),
		zap.String("crs", layer.CRS.Def),
	)

	rasterCRS, err := model.ParseCRS(cfg.Raster.CRS)
	if err != nil {
		return nil, model.LoadError(eris.Wrap(err, "pipeline: raster crs"))
	}
	baseline, err := p.loadBand(log, cfg.Raster.Baseline, rasterCRS)
	if err != nil {
		return nil, err
	}
	future, err := p.loadBand(log, cfg.Raster.Future, rasterCRS)
	if err != nil {
		return nil, err
	}

	return &Inputs{Records: records, Layer: layer, Baseline: baseline, Future: future}, nil
}

func (p *Pipeline) loadBand(log *zap.Logger, band config.BandConfig, crs model.CRS) (*raster.Grid, error) {
	if log.Core().Enabled(zap.DebugLevel) {
		if vars, err := raster.Describe(band.Path); err == nil {
			for _, v := range vars {
				log.Debug("raster variable",
					zap.String("path", band.Path),
					zap.String("variable", v.Name),
					zap.Strings("dims", v.Dimensions),
					zap.Int("bands", v.Bands()),
				)
			}
		}
	}

	g, err := raster.ReadNetCDF(band.Path, raster.Options{
		Variable: band.Variable,
		Band:     band.Band,
		XName:    p.cfg.Raster.XName,
		YName:    p.cfg.Raster.YName,
		CRS:      crs,
	})
	if err != nil {
		return nil, err
	}
	log.Info("raster band loaded",
		zap.String("path", band.Path),
		zap.Int("band", band.Band),
		zap.Int("rows", g.Rows()),
		zap.Int("cols", g.Cols()),
		zap.Int("valid_cells", g.ValidCount()),
	)
	return g, nil
}

// Join attaches yields to counties. On a join error the report is still
// returned so unresolved counties can be inspected.
func (p *Pipeline) Join(in *Inputs) (*match.Report, error) {
	report, err := match.Join(in.Layer.Counties, in.Records, match.Options{
		StateCode:    p.cfg.Counties.StateCode,
		FallbackName: p.cfg.Yield.FallbackName,
	})
	if report != nil {
		zap.L().Info("join complete",
			zap.String("component", "pipeline.join"),
			zap.String("summary", report.Summary()),
		)
	}
	return report, err
}

// Aggregate crops both bands to the configured extent, computes the
// per-cell percentage change and stores each county's zonal mean change
// and projected yield. It returns the change grid.
func (p *Pipeline) Aggregate(in *Inputs) (*raster.Grid, error) {
	rc := p.cfg.Raster
	extent := raster.Extent{
		XMin: rc.Extent.XMin, XMax: rc.Extent.XMax,
		YMin: rc.Extent.YMin, YMax: rc.Extent.YMax,
	}

	baseline, err := raster.Crop(in.Baseline, extent)
	if err != nil {
		return nil, err
	}
	future, err := raster.Crop(in.Future, extent)
	if err != nil {
		return nil, err
	}
	change, err := raster.PercentChange(baseline, future)
	if err != nil {
		return nil, err
	}

	counties := in.Layer.Counties
	polys, err := zonal.Reproject(counties, in.Layer.CRS, change.CRS, zonal.ReprojectOptions{
		WrapLongitude: rc.WrapLongitude,
	})
	if err != nil {
		return nil, err
	}
	means := zonal.Means(change, polys, zonal.Options{Weighted: p.cfg.Zonal.Weighted})
	if err := zonal.Apply(counties, means); err != nil {
		return nil, err
	}

	zap.L().Info("aggregation complete",
		zap.String("component", "pipeline.aggregate"),
		zap.Int("rows", change.Rows()),
		zap.Int("cols", change.Cols()),
		zap.Int("valid_cells", change.ValidCount()),
		zap.Int("null_means", countNil(counties, func(c *model.County) *float64 { return c.PctChange })),
	)
	return change, nil
}

// YieldOptions maps the yield config section to loader options.
func YieldOptions(c config.YieldConfig) yield.Options {
	opts := yield.Options{
		Columns: yield.Columns{
			GeoLevel:   c.Columns.GeoLevel,
			StateCode:  c.Columns.StateCode,
			CountyName: c.Columns.CountyName,
			CountyCode: c.Columns.CountyCode,
			Value:      c.Columns.Value,
		},
		HasHeader:        c.HasHeader,
		Sheet:            c.Sheet,
		StateLevelMarker: c.StateLevelMarker,
	}
	if r := []rune(c.Delimiter); len(r) == 1 {
		opts.Delimiter = r[0]
	}
	return opts
}

// BoundaryOptions maps the counties config section to loader options.
func BoundaryOptions(c config.CountiesConfig) boundary.Options {
	return boundary.Options{
		StateField:  c.StateField,
		CountyField: c.CountyField,
		NameField:   c.NameField,
		StateCode:   c.StateCode,
		DefaultCRS:  c.CRS,
	}
}
