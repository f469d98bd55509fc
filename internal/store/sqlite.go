package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/yield-atlas/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, opts: buildOptions(opts)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
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
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME
);

CREATE TABLE IF NOT EXISTS county_results (
	run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	geoid           TEXT NOT NULL,
	name            TEXT NOT NULL,
	yield           REAL,
	yield_source    TEXT NOT NULL,
	pct_change      REAL,
	projected_yield REAL,
	geom            BLOB,
	PRIMARY KEY (run_id, geoid)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_state_code ON runs(state_code);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	prepareRun(run)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, state_code, yield_path, counties_path, baseline_path, baseline_band, future_path, future_band, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.StateCode, run.YieldPath, run.CountiesPath,
		run.BaselinePath, run.BaselineBand, run.FuturePath, run.FutureBand, run.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, county_count = ?, filled_count = ?, null_pct_count = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), run.CountyCount, run.FilledCount, run.NullPctCount,
		nullString(run.Error), finishedAt(run), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

const sqliteRunColumns = `id, status, state_code, yield_path, counties_path, baseline_path, baseline_band, future_path, future_band, county_count, filled_count, null_pct_count, error, started_at, finished_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.StateCode > 0 {
		query += ` AND state_code = ?`
		args = append(args, filter.StateCode)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SaveResults replaces the stored county results of a run.
func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, counties []*model.County) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save results")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM county_results WHERE run_id = ?`, runID); err != nil {
		return eris.Wrapf(err, "sqlite: clear results %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO county_results (run_id, geoid, name, yield, yield_source, pct_change, projected_yield, geom)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert result")
	}
	defer stmt.Close()

	for _, c := range counties {
		row, err := resultRow(runID, c, s.opts.srid)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert result %s", c.GEOID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit results")
}

func (s *SQLiteStore) CountyResults(ctx context.Context, runID string) ([]model.CountyResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, geoid, name, yield, yield_source, pct_change, projected_yield
		 FROM county_results WHERE run_id = ? ORDER BY geoid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: county results %s", runID)
	}
	defer rows.Close()

	var results []model.CountyResult
	for rows.Next() {
		var r model.CountyResult
		var yield, pct, projected sql.NullFloat64
		var source string
		if err := rows.Scan(&r.RunID, &r.GEOID, &r.Name, &yield, &source, &pct, &projected); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan county result")
		}
		r.YieldSource = model.YieldSource(source)
		r.Yield = nullFloat(yield)
		r.PctChange = nullFloat(pct)
		r.ProjectedYield = nullFloat(projected)
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: county results iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var errText sql.NullString
	var finished sql.NullTime

	err := row.Scan(
		&r.ID, &status, &r.StateCode, &r.YieldPath, &r.CountiesPath,
		&r.BaselinePath, &r.BaselineBand, &r.FuturePath, &r.FutureBand,
		&r.CountyCount, &r.FilledCount, &r.NullPctCount, &errText, &r.StartedAt, &finished,
	)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Status = model.RunStatus(status)
	r.Error = errText.String
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

