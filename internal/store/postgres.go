package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yield-atlas/internal/db"
	"github.com/sells-group/yield-atlas/internal/model"
)

// Schema holds every table the Postgres store owns.
const Schema = "yield_atlas"

// PostgresStore implements Store using pgxpool and PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	opts    options
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	insertRunSQL = `INSERT INTO yield_atlas.runs (id, status, state_code, yield_path, counties_path, baseline_path, baseline_band, future_path, future_band, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	finishRunSQL = `UPDATE yield_atlas.runs SET status = $1, county_count = $2, filled_count = $3, null_pct_count = $4, error = $5, finished_at = $6 WHERE id = $7`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, opts ...Option) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, opts: buildOptions(opts)}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE SCHEMA IF NOT EXISTS yield_atlas;

CREATE TABLE IF NOT EXISTS yield_atlas.runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status         TEXT NOT NULL DEFAULT 'running',
	state_code     INTEGER NOT NULL,
	yield_path     TEXT NOT NULL,
	counties_path  TEXT NOT NULL,
	baseline_path  TEXT NOT NULL,
	baseline_band  INTEGER NOT NULL,
	future_path    TEXT NOT NULL,
	future_band    INTEGER NOT NULL,
	county_count   INTEGER NOT NULL DEFAULT 0,
	filled_count   INTEGER NOT NULL DEFAULT 0,
	null_pct_count INTEGER NOT NULL DEFAULT 0,
	error          TEXT,
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS yield_atlas.county_results (
	run_id          TEXT NOT NULL REFERENCES yield_atlas.runs(id) ON DELETE CASCADE,
	geoid           TEXT NOT NULL,
	name            TEXT NOT NULL,
	yield           DOUBLE PRECISION,
	yield_source    TEXT NOT NULL,
	pct_change      DOUBLE PRECISION,
	projected_yield DOUBLE PRECISION,
	geom            geometry(MultiPolygon),
	PRIMARY KEY (run_id, geoid)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON yield_atlas.runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_state_code ON yield_atlas.runs(state_code);
CREATE INDEX IF NOT EXISTS idx_county_results_geom ON yield_atlas.county_results USING GIST (geom);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	prepareRun(run)
	_, err := s.pool.Exec(ctx, insertRunSQL,
		run.ID, string(run.Status), run.StateCode, run.YieldPath, run.CountiesPath,
		run.BaselinePath, run.BaselineBand, run.FuturePath, run.FutureBand, run.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	var errText *string
	if run.Error != "" {
		errText = &run.Error
	}
	tag, err := s.pool.Exec(ctx, finishRunSQL,
		string(run.Status), run.CountyCount, run.FilledCount, run.NullPctCount,
		errText, finishedAt(run), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

const postgresRunColumns = `id, status, state_code, yield_path, counties_path, baseline_path, baseline_band, future_path, future_band, county_count, filled_count, null_pct_count, error, started_at, finished_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresRunColumns+` FROM yield_atlas.runs WHERE id = $1`,
		runID,
	)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: get run %s: run not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM yield_atlas.runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.StateCode > 0 {
		query += fmt.Sprintf(` AND state_code = $%d`, argIdx)
		args = append(args, filter.StateCode)
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveResults replaces the stored county results of a run. The rows are
// COPYed with their geometry as EWKB inside one transaction.
func (s *PostgresStore) SaveResults(ctx context.Context, runID string, counties []*model.County) error {
	log := zap.L().With(zap.String("component", "store.postgres"), zap.String("run_id", runID))

	rows := make([][]any, 0, len(counties))
	for _, c := range counties {
		row, err := resultRow(runID, c, s.opts.srid)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save results")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM yield_atlas.county_results WHERE run_id = $1`, runID); err != nil {
		return eris.Wrapf(err, "postgres: clear results %s", runID)
	}

	n, err := db.CopyFromSchema(ctx, tx, Schema, "county_results", resultColumns, rows, 0)
	if err != nil {
		return eris.Wrap(err, "postgres: copy results")
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit results")
	}

	log.Info("county results saved", zap.Int64("rows", n))
	return nil
}

func (s *PostgresStore) CountyResults(ctx context.Context, runID string) ([]model.CountyResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, geoid, name, yield, yield_source, pct_change, projected_yield
		 FROM yield_atlas.county_results WHERE run_id = $1 ORDER BY geoid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: county results %s", runID)
	}
	defer rows.Close()

	var results []model.CountyResult
	for rows.Next() {
		var r model.CountyResult
		var source string
		if err := rows.Scan(&r.RunID, &r.GEOID, &r.Name, &r.Yield, &source, &r.PctChange, &r.ProjectedYield); err != nil {
			return nil, eris.Wrap(err, "postgres: scan county result")
		}
		r.YieldSource = model.YieldSource(source)
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: county results iterate")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var errText *string
	var finished *time.Time

	if err := row.Scan(
		&r.ID, &status, &r.StateCode, &r.YieldPath, &r.CountiesPath,
		&r.BaselinePath, &r.BaselineBand, &r.FuturePath, &r.FutureBand,
		&r.CountyCount, &r.FilledCount, &r.NullPctCount, &errText, &r.StartedAt, &finished,
	); err != nil {
		return nil, err
	}

	r.Status = model.RunStatus(status)
	if errText != nil {
		r.Error = *errText
	}
	if finished != nil {
		r.FinishedAt = *finished
	}
	return &r, nil
}
