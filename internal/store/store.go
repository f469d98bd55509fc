// Package store persists pipeline runs and their per-county results.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/yield-atlas/internal/boundary"
	"github.com/sells-group/yield-atlas/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	StateCode int             `json:"state_code,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for pipeline runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// County results
	SaveResults(ctx context.Context, runID string, counties []*model.County) error
	CountyResults(ctx context.Context, runID string) ([]model.CountyResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// defaultListLimit caps ListRuns when the filter sets no limit.
const defaultListLimit = 100

// prepareRun fills the fields CreateRun owns.
func prepareRun(run *model.Run) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = model.RunStatusRunning
	run.FinishedAt = time.Time{}
	run.Error = ""
}

// finishedAt returns the finish time to persist, stamping now when the
// caller left it unset.
func finishedAt(run *model.Run) time.Time {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	return run.FinishedAt
}

// resultColumns is the column order shared by both backends.
var resultColumns = []string{
	"run_id", "geoid", "name", "yield", "yield_source", "pct_change", "projected_yield", "geom",
}

// DefaultSRID is the SRID stamped on stored county geometries: NAD83, the
// datum of TIGER/Line boundaries.
const DefaultSRID = 4269

type options struct {
	srid int
}

// Option configures a store.
type Option func(*options)

// WithSRID sets the SRID written into stored EWKB geometries.
func WithSRID(srid int) Option {
	return func(o *options) {
		if srid > 0 {
			o.srid = srid
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{srid: DefaultSRID}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// resultRow flattens one county into resultColumns order.
func resultRow(runID string, c *model.County, srid int) ([]any, error) {
	wkb, err := boundary.EncodeWKB(c.Geometry, srid)
	if err != nil {
		return nil, eris.Wrapf(err, "store: encode geometry %s", c.GEOID)
	}
	return []any{
		runID, c.GEOID, c.Name, c.Yield, string(c.YieldSource), c.PctChange, c.ProjectedYield, wkb,
	}, nil
}
