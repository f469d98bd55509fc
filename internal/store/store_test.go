package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/yield-atlas/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testRun(state int) *model.Run {
	return &model.Run{
		StateCode:    state,
		YieldPath:    "data/yield.csv",
		CountiesPath: "data/counties.shp",
		BaselinePath: "data/baseline.nc",
		BaselineBand: 1,
		FuturePath:   "data/future.nc",
		FutureBand:   31,
	}
}

func square(x, y float64) *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y},
	}}})
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run := testRun(17)
		require.NoError(t, s.CreateRun(ctx, run))
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)
		assert.False(t, run.StartedAt.IsZero())

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, model.RunStatusRunning, got.Status)
		assert.Equal(t, 17, got.StateCode)
		assert.Equal(t, "data/future.nc", got.FuturePath)
		assert.Equal(t, 31, got.FutureBand)
		assert.True(t, got.FinishedAt.IsZero())
		assert.WithinDuration(t, run.StartedAt, got.StartedAt, time.Second)
	})

	t.Run("FinishRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run := testRun(17)
		require.NoError(t, s.CreateRun(ctx, run))

		run.Status = model.RunStatusFailed
		run.CountyCount = 102
		run.FilledCount = 3
		run.NullPctCount = 1
		run.Error = "join: 2 counties unresolved"
		require.NoError(t, s.FinishRun(ctx, run))
		assert.False(t, run.FinishedAt.IsZero())

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Equal(t, 102, got.CountyCount)
		assert.Equal(t, 3, got.FilledCount)
		assert.Equal(t, 1, got.NullPctCount)
		assert.Equal(t, "join: 2 counties unresolved", got.Error)
		assert.False(t, got.FinishedAt.IsZero())
	})

	t.Run("FinishRunNotFound", func(t *testing.T) {
		s := newStore(t)
		run := testRun(17)
		run.ID = "missing"
		run.Status = model.RunStatusComplete
		err := s.FinishRun(context.Background(), run)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("ListRuns", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		for i, state := range []int{17, 19, 17} {
			run := testRun(state)
			run.StartedAt = base.Add(time.Duration(i) * time.Hour)
			require.NoError(t, s.CreateRun(ctx, run))
			if i == 0 {
				run.Status = model.RunStatusComplete
				require.NoError(t, s.FinishRun(ctx, run))
			}
		}

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.True(t, all[0].StartedAt.After(all[1].StartedAt), "newest first")

		illinois, err := s.ListRuns(ctx, RunFilter{StateCode: 17})
		require.NoError(t, err)
		assert.Len(t, illinois, 2)

		complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
		require.NoError(t, err)
		require.Len(t, complete, 1)
		assert.Equal(t, 17, complete[0].StateCode)

		page, err := s.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, 19, page[0].StateCode)
	})

	t.Run("SaveAndReadResults", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run := testRun(17)
		require.NoError(t, s.CreateRun(ctx, run))

		counties := []*model.County{
			{
				GEOID: "17003", Name: "Alexander", Geometry: square(-89.5, 37.0),
				Yield: model.Float(150), YieldSource: model.YieldSourceFallback,
			},
			{
				GEOID: "17001", Name: "Adams", Geometry: square(-91.5, 39.8),
				Yield: model.Float(180), YieldSource: model.YieldSourceDirect,
				PctChange: model.Float(-12.5), ProjectedYield: model.Float(157.5),
			},
		}
		require.NoError(t, s.SaveResults(ctx, run.ID, counties))

		results, err := s.CountyResults(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "17001", results[0].GEOID)
		assert.Equal(t, run.ID, results[0].RunID)
		assert.Equal(t, model.YieldSourceDirect, results[0].YieldSource)
		require.NotNil(t, results[0].PctChange)
		assert.InDelta(t, -12.5, *results[0].PctChange, 1e-9)
		require.NotNil(t, results[0].ProjectedYield)
		assert.InDelta(t, 157.5, *results[0].ProjectedYield, 1e-9)

		assert.Equal(t, "Alexander", results[1].Name)
		assert.Equal(t, model.YieldSourceFallback, results[1].YieldSource)
		assert.Nil(t, results[1].PctChange)
		assert.Nil(t, results[1].ProjectedYield)
	})

	t.Run("SaveResultsReplaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run := testRun(17)
		require.NoError(t, s.CreateRun(ctx, run))

		first := []*model.County{
			{GEOID: "17001", Name: "Adams", Yield: model.Float(180), YieldSource: model.YieldSourceDirect},
			{GEOID: "17003", Name: "Alexander", Yield: model.Float(150), YieldSource: model.YieldSourceFallback},
		}
		require.NoError(t, s.SaveResults(ctx, run.ID, first))
		require.NoError(t, s.SaveResults(ctx, run.ID, first[:1]))

		results, err := s.CountyResults(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "17001", results[0].GEOID)
	})

	t.Run("CountyResultsEmpty", func(t *testing.T) {
		s := newStore(t)
		results, err := s.CountyResults(context.Background(), "missing")
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestPrepareRun_KeepsGivenIDAndStart(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := &model.Run{ID: "fixed", StartedAt: start, Status: model.RunStatusFailed, Error: "old"}
	prepareRun(run)
	assert.Equal(t, "fixed", run.ID)
	assert.Equal(t, start, run.StartedAt)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Empty(t, run.Error)
}

func TestResultRow_ColumnsAndGeometry(t *testing.T) {
	c := &model.County{GEOID: "17001", Name: "Adams", Geometry: square(0, 0), YieldSource: model.YieldSourceDirect}
	row, err := resultRow("run-1", c, DefaultSRID)
	require.NoError(t, err)
	require.Len(t, row, len(resultColumns))
	assert.Equal(t, "run-1", row[0])
	assert.Equal(t, "direct", row[4])
	wkb, ok := row[7].([]byte)
	require.True(t, ok)
	assert.NotEmpty(t, wkb)

	c.Geometry = nil
	row, err = resultRow("run-1", c, DefaultSRID)
	require.NoError(t, err)
	assert.Nil(t, row[7])
}
