package export

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Manifest records what a run read, how it was configured and what it
// wrote.
type Manifest struct {
	RunID      string       `yaml:"run_id"`
	StartedAt  time.Time    `yaml:"started_at"`
	FinishedAt time.Time    `yaml:"finished_at"`
	StateCode  int          `yaml:"state_code"`
	Inputs     Inputs       `yaml:"inputs"`
	Extent     [4]float64   `yaml:"extent,flow"`
	Weighted   bool         `yaml:"weighted"`
	Join       JoinSummary  `yaml:"join"`
	Classes    ClassSummary `yaml:"classes"`
	Outputs    []string     `yaml:"outputs"`
	Nulls      NullSummary  `yaml:"nulls"`
}

// Inputs lists the input files.
type Inputs struct {
	Yield        string `yaml:"yield"`
	Counties     string `yaml:"counties"`
	CountiesCRS  string `yaml:"counties_crs"`
	Baseline     string `yaml:"baseline"`
	BaselineBand int    `yaml:"baseline_band"`
	Future       string `yaml:"future"`
	FutureBand   int    `yaml:"future_band"`
	Variable     string `yaml:"variable"`
}

// JoinSummary counts the join outcome.
type JoinSummary struct {
	Counties      int      `yaml:"counties"`
	Matched       int      `yaml:"matched"`
	Filled        int      `yaml:"filled"`
	FilledGEOIDs  []string `yaml:"filled_geoids,omitempty"`
	UnusedRecords int      `yaml:"unused_records"`
	FallbackYield *float64 `yaml:"fallback_yield"`
}

// ClassSummary holds the class breaks of each figure.
type ClassSummary struct {
	Yield  []float64 `yaml:"yield,flow"`
	Change []float64 `yaml:"change,flow"`
	Panels []float64 `yaml:"panels,flow"`
}

// NullSummary counts counties without aggregated values.
type NullSummary struct {
	PctChange      int `yaml:"pct_change"`
	ProjectedYield int `yaml:"projected_yield"`
}

// WriteManifest writes m as YAML to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "export: marshal manifest")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "export: parse %s", path)
	}
	return &m, nil
}
