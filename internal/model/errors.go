package model

import (
	"errors"
	"fmt"
)

// Stage names a pipeline stage in the error taxonomy.
type Stage string

const (
	StageLoad      Stage = "load"
	StageJoin      Stage = "join"
	StageAggregate Stage = "aggregate"
	StageRender    Stage = "render"
	StageExport    Stage = "export"
	StageStore     Stage = "store"
)

// StageError wraps a fatal error with the stage it came from. Every
// StageError aborts the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func newStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// LoadError marks a missing/unreadable input or a schema mismatch.
func LoadError(err error) error { return newStageError(StageLoad, err) }

// JoinError marks a county left unresolved after the join and fallback pass.
func JoinError(err error) error { return newStageError(StageJoin, err) }

// AggregationError marks mismatched grids or an invalid extent.
func AggregationError(err error) error { return newStageError(StageAggregate, err) }

// RenderError marks an invalid class count or an unusable palette.
func RenderError(err error) error { return newStageError(StageRender, err) }

// ExportError marks a failure writing figures, tables or the manifest.
func ExportError(err error) error { return newStageError(StageExport, err) }

// StoreError marks a failure persisting a run.
func StoreError(err error) error { return newStageError(StageStore, err) }

// IsStage reports whether err (or any error in its chain) is a StageError
// for the given stage.
func IsStage(err error, stage Stage) bool {
	var se *StageError
	for err != nil {
		if !errors.As(err, &se) {
			return false
		}
		if se.Stage == stage {
			return true
		}
		err = se.Err
	}
	return false
}
