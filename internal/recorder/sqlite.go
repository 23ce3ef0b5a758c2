package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"MediaSentiment/internal/model"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			status      TEXT NOT NULL,
			error       TEXT,
			endog       TEXT,
			exog        TEXT,
			order_p     INTEGER,
			order_d     INTEGER,
			order_q     INTEGER,
			train_from  INTEGER,
			train_to    INTEGER,
			train_rows  INTEGER,
			test_rows   INTEGER,
			train_rmse  REAL,
			test_rmse   REAL,
			sigma2      REAL,
			loglik      REAL,
			aic         REAL,
			output_path TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS coefficients (
			run_id TEXT NOT NULL REFERENCES runs(id),
			name   TEXT NOT NULL,
			value  REAL,
			PRIMARY KEY (run_id, name)
		)`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			run_id   TEXT NOT NULL REFERENCES runs(id),
			year     INTEGER NOT NULL,
			quarter  INTEGER NOT NULL,
			split    TEXT NOT NULL,
			actual   REAL,
			yhat     REAL,
			residual REAL,
			PRIMARY KEY (run_id, year, quarter)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// nullable stores the missing marker as NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !model.IsMissing(v)}
}

func valueOf(v sql.NullFloat64) float64 {
	if !v.Valid {
		return model.Missing
	}
	return v.Float64
}

// RecordRun writes the run, its coefficients and its scored rows in one transaction.
func (r *SQLiteRecorder) RecordRun(run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	sigma2, loglik, aic := model.Missing, model.Missing, model.Missing
	if run.Model != nil {
		sigma2, loglik, aic = run.Model.Sigma2, run.Model.LogLik, run.Model.AIC
	}
	_, err = tx.Exec(`INSERT INTO runs
		(id, started_at, finished_at, status, error, endog, exog,
		 order_p, order_d, order_q, train_from, train_to, train_rows, test_rows,
		 train_rmse, test_rmse, sigma2, loglik, aic, output_path)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Status, run.Error,
		run.Endog, strings.Join(run.Exog, ","),
		run.Order.P, run.Order.D, run.Order.Q,
		run.TrainFrom, run.TrainTo, run.TrainRows, run.TestRows,
		nullable(run.TrainRMSE), nullable(run.TestRMSE),
		nullable(sigma2), nullable(loglik), nullable(aic),
		run.OutputPath,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if run.Model != nil {
		for _, c := range run.Model.Coefficients() {
			if _, err := tx.Exec(`INSERT INTO coefficients (run_id, name, value) VALUES (?,?,?)`,
				run.ID, c.Name, nullable(c.Value)); err != nil {
				return fmt.Errorf("insert coefficient %s: %w", c.Name, err)
			}
		}
	}

	if len(run.Scored) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO forecasts
			(run_id, year, quarter, split, actual, yhat, residual) VALUES (?,?,?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("prepare forecasts: %w", err)
		}
		defer stmt.Close()
		for _, s := range run.Scored {
			if _, err := stmt.Exec(run.ID, s.Key.Year, s.Key.Quarter, string(s.Window),
				nullable(s.Get(run.Endog)), nullable(s.Yhat), nullable(s.Residual)); err != nil {
				return fmt.Errorf("insert forecast %s: %w", s.Key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run with its fitted parameters.
// Scored rows are not loaded.
func (r *SQLiteRecorder) LastRun() (*RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var run RunRecord
	var started, finished int64
	var errText, exog, output sql.NullString
	var trainRMSE, testRMSE, sigma2, loglik, aic sql.NullFloat64
	err := r.db.QueryRow(`SELECT id, started_at, finished_at, status, error, endog, exog,
		order_p, order_d, order_q, train_from, train_to, train_rows, test_rows,
		train_rmse, test_rmse, sigma2, loglik, aic, output_path
		FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(
		&run.ID, &started, &finished, &run.Status, &errText, &run.Endog, &exog,
		&run.Order.P, &run.Order.D, &run.Order.Q,
		&run.TrainFrom, &run.TrainTo, &run.TrainRows, &run.TestRows,
		&trainRMSE, &testRMSE, &sigma2, &loglik, &aic, &output,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)
	run.Error = errText.String
	run.OutputPath = output.String
	if exog.String != "" {
		run.Exog = strings.Split(exog.String, ",")
	}
	run.TrainRMSE = valueOf(trainRMSE)
	run.TestRMSE = valueOf(testRMSE)

	if run.Status != StatusSuccess {
		return &run, nil
	}

	m := &model.FittedModel{
		Order:  run.Order,
		Exog:   run.Exog,
		Sigma2: valueOf(sigma2),
		LogLik: valueOf(loglik),
		AIC:    valueOf(aic),
		NObs:   run.TrainRows,
	}
	coefs := map[string]float64{}
	rows, err := r.db.Query(`SELECT name, value FROM coefficients WHERE run_id = ?`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query coefficients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var v sql.NullFloat64
		if err := rows.Scan(&name, &v); err != nil {
			return nil, fmt.Errorf("scan coefficient: %w", err)
		}
		coefs[name] = valueOf(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read coefficients: %w", err)
	}

	m.Intercept = coefs["const"]
	for _, name := range m.Exog {
		m.Beta = append(m.Beta, coefs[name])
	}
	for i := 1; i <= run.Order.P; i++ {
		m.AR = append(m.AR, coefs[fmt.Sprintf("ar.L%d", i)])
	}
	for i := 1; i <= run.Order.Q; i++ {
		m.MA = append(m.MA, coefs[fmt.Sprintf("ma.L%d", i)])
	}
	run.Model = m
	return &run, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
