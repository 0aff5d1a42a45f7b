package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fairclaim/fos-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	categories TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	stats      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS decisions (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	reference    TEXT NOT NULL,
	category     TEXT NOT NULL,
	outcome_score REAL NOT NULL,
	record       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, reference)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_decisions_run_id ON decisions(run_id);
CREATE INDEX IF NOT EXISTS idx_decisions_category ON decisions(run_id, category);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, categories []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	catJSON, err := json.Marshal(categories)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal categories")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, categories, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(catJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:         id,
		Categories: categories,
		Status:     model.RunStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats *model.RunStatistics) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, categories, status, stats, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, categories, status, stats, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) SaveDecision(ctx context.Context, runID string, d *model.ClassifiedDecision) error {
	record, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal decision")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (run_id, reference, category, outcome_score, record)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, reference) DO UPDATE SET
		   category = excluded.category,
		   outcome_score = excluded.outcome_score,
		   record = excluded.record`,
		runID, d.Reference, string(d.ComplaintCategory), d.OutcomeScore, string(record),
	)
	return eris.Wrapf(err, "sqlite: save decision %s", d.Reference)
}

func (s *SQLiteStore) HasReference(ctx context.Context, runID string, reference string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM decisions WHERE run_id = ? AND reference = ?`,
		runID, reference,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: has reference %s", reference)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, runID string) ([]model.ClassifiedDecision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM decisions WHERE run_id = ? ORDER BY reference`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions")
	}
	defer rows.Close() //nolint:errcheck

	var decisions []model.ClassifiedDecision
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		var d model.ClassifiedDecision
		if err := json.Unmarshal([]byte(record), &d); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal decision")
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "sqlite: iterate decisions")
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var catJSON string
	var statsJSON sql.NullString
	var status string

	if err := row.Scan(&run.ID, &catJSON, &status, &statsJSON, &run.CreatedAt, &run.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrap(err, "store: run not found")
		}
		return nil, eris.Wrap(err, "store: scan run")
	}

	run.Status = model.RunStatus(status)
	if err := json.Unmarshal([]byte(catJSON), &run.Categories); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal categories")
	}
	if statsJSON.Valid && statsJSON.String != "" {
		var stats model.RunStatistics
		if err := json.Unmarshal([]byte(statsJSON.String), &stats); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal stats")
		}
		run.Stats = &stats
	}
	return &run, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return eris.Errorf("store: %s %s not found", kind, id)
	}
	return nil
}
