// Package pipeline runs the load, join, aggregate, render and export
// stages in order for one configured state.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yield-atlas/internal/boundary"
	"github.com/sells-group/yield-atlas/internal/config"
	"github.com/sells-group/yield-atlas/internal/export"
	"github.com/sells-group/yield-atlas/internal/match"
	"github.com/sells-group/yield-atlas/internal/model"
	"github.com/sells-group/yield-atlas/internal/raster"
	"github.com/sells-group/yield-atlas/internal/render"
	"github.com/sells-group/yield-atlas/internal/store"
)

// Deps holds the pipeline's optional collaborators.
type Deps struct {
	// Store records runs and county results. Nil disables persistence.
	Store store.Store
}

// Pipeline orchestrates the stages of one run.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
}

// New creates a Pipeline.
func New(cfg *config.Config, deps Deps) *Pipeline {
	return &Pipeline{cfg: cfg, store: deps.Store}
}

// Inputs is the output of the load stage.
type Inputs struct {
	Records  []model.YieldRecord
	Layer    *boundary.Layer
	Baseline *raster.Grid
	Future   *raster.Grid
}

// Classes holds the class breaks used by each figure.
type Classes struct {
	Yield  *render.Classes
	Change *render.Classes
	Panels *render.Classes
}

// Result is everything a run produced. Fields are filled as stages
// complete, so a failed run returns a partial Result.
type Result struct {
	RunID     string
	StartedAt time.Time
	Inputs    *Inputs
	Report    *match.Report
	Change    *raster.Grid
	Classes   Classes
	Outputs   []string
	Manifest  *export.Manifest
}

// Counties returns the joined counties, or nil before the load stage
// finished.
func (r *Result) Counties() []*model.County {
	if r.Inputs == nil || r.Inputs.Layer == nil {
		return nil
	}
	return r.Inputs.Layer.Counties
}

// Run executes every stage once. The returned Result is non-nil whenever
// the run record could be created, even when a stage failed.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	run := p.newRun()
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.Int("state_code", run.StateCode),
	)

	if p.store != nil {
		if err := p.store.CreateRun(ctx, run); err != nil {
			return nil, model.StoreError(eris.Wrap(err, "pipeline: create run"))
		}
	} else {
		run.ID = uuid.New().String()
		run.StartedAt = time.Now().UTC()
		run.Status = model.RunStatusRunning
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting run")

	res := &Result{RunID: run.ID, StartedAt: run.StartedAt}
	runErr := p.execute(ctx, log, res)

	if err := p.finish(ctx, log, run, res, runErr); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		log.Error("pipeline: run failed", zap.Error(runErr))
		return res, runErr
	}
	log.Info("pipeline: run complete",
		zap.Int("counties", run.CountyCount),
		zap.Int("filled", run.FilledCount),
		zap.Int("null_pct", run.NullPctCount),
		zap.Strings("outputs", res.Outputs),
	)
	return res, nil
}

func (p *Pipeline) newRun() *model.Run {
	return &model.Run{
		StateCode:    p.cfg.Counties.StateCode,
		YieldPath:    p.cfg.Yield.Path,
		CountiesPath: p.cfg.Counties.Path,
		BaselinePath: p.cfg.Raster.Baseline.Path,
		BaselineBand: p.cfg.Raster.Baseline.Band,
		FuturePath:   p.cfg.Raster.Future.Path,
		FutureBand:   p.cfg.Raster.Future.Band,
	}
}

func (p *Pipeline) execute(ctx context.Context, log *zap.Logger, res *Result) error {
	err := trackStage(ctx, log, model.StageLoad, func() error {
		in, err := p.LoadInputs(ctx)
		res.Inputs = in
		return err
	})
	if err != nil {
		return err
	}

	err = trackStage(ctx, log, model.StageJoin, func() error {
		report, err := p.Join(res.Inputs)
		res.Report = report
		return err
	})
	if err != nil {
		return err
	}

	err = trackStage(ctx, log, model.StageAggregate, func() error {
		change, err := p.Aggregate(res.Inputs)
		res.Change = change
		return err
	})
	if err != nil {
		return err
	}

	err = trackStage(ctx, log, model.StageRender, func() error {
		return p.Render(res)
	})
	if err != nil {
		return err
	}

	return trackStage(ctx, log, model.StageExport, func() error {
		return p.Export(res)
	})
}

// trackStage runs one stage, logging its duration and outcome. A canceled
// context stops the run before the stage starts.
func trackStage(ctx context.Context, log *zap.Logger, stage model.Stage, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "pipeline: %s canceled", stage)
	}

	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()

	if err != nil {
		log.Error("pipeline: stage failed",
			zap.String("stage", string(stage)),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return err
	}
	log.Info("pipeline: stage complete",
		zap.String("stage", string(stage)),
		zap.Int64("duration_ms", duration),
	)
	return nil
}

// finish fills the run summary and records it. County results are saved
// only for complete runs.
func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, run *model.Run, res *Result, runErr error) error {
	counties := res.Counties()
	run.CountyCount = len(counties)
	if res.Report != nil {
		run.FilledCount = len(res.Report.Filled)
	}
	if res.Change != nil {
		run.NullPctCount = countNil(counties, func(c *model.County) *float64 { return c.PctChange })
	}
	run.FinishedAt = time.Now().UTC()

	if p.store == nil {
		return nil
	}

	var saveErr error
	if runErr == nil {
		if err := p.store.SaveResults(ctx, run.ID, counties); err != nil {
			saveErr = model.StoreError(eris.Wrap(err, "pipeline: save county results"))
		}
	}

	run.Status = model.RunStatusComplete
	switch {
	case runErr != nil:
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	case saveErr != nil:
		run.Status = model.RunStatusFailed
		run.Error = saveErr.Error()
	}

	if err := p.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("pipeline: failed to record run status", zap.Error(err))
		if saveErr == nil {
			saveErr = model.StoreError(eris.Wrap(err, "pipeline: finish run"))
		}
	}
	return saveErr
}

func countNil(counties []*model.County, field func(*model.County) *float64) int {
	var n int
	for _, c := range counties {
		if field(c) == nil {
			n++
		}
	}
	return n
}
