package model

import "time"

// RunStatus represents the outcome of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID           string    `json:"id"`
	Status       RunStatus `json:"status"`
	StateCode    int       `json:"state_code"`
	YieldPath    string    `json:"yield_path"`
	CountiesPath string    `json:"counties_path"`
	BaselinePath string    `json:"baseline_path"`
	BaselineBand int       `json:"baseline_band"`
	FuturePath   string    `json:"future_path"`
	FutureBand   int       `json:"future_band"`
	CountyCount  int       `json:"county_count"`
	FilledCount  int       `json:"filled_count"`
	NullPctCount int       `json:"null_pct_count"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// CountyResult is the persisted per-county outcome of a run.
type CountyResult struct {
	RunID          string      `json:"run_id"`
	GEOID          string      `json:"geoid"`
	Name           string      `json:"name"`
	Yield          *float64    `json:"yield,omitempty"`
	YieldSource    YieldSource `json:"yield_source"`
	PctChange      *float64    `json:"pct_change,omitempty"`
	ProjectedYield *float64    `json:"projected_yield,omitempty"`
}

// ResultOf converts a joined county to its persisted form.
func ResultOf(runID string, c *County) CountyResult {
	return CountyResult{
		RunID:          runID,
		GEOID:          c.GEOID,
		Name:           c.Name,
		Yield:          c.Yield,
		YieldSource:    c.YieldSource,
		PctChange:      c.PctChange,
		ProjectedYield: c.ProjectedYield,
	}
}
