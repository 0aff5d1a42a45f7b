package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fairclaim/fos-cli/internal/model"
)

// pgxPool is the subset of pgxpool.Pool used by PostgresStore, kept as
// an interface so tests can substitute a pgxmock pool.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgxPool
}

// NewPostgres connects to the given database URL.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// newPostgresWithPool wires an existing pool; used by tests.
func newPostgresWithPool(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	categories JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	stats      JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decisions (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	reference     TEXT NOT NULL,
	category      TEXT NOT NULL,
	outcome_score DOUBLE PRECISION NOT NULL,
	record        JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, reference)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_decisions_run_id ON decisions(run_id);
CREATE INDEX IF NOT EXISTS idx_decisions_category ON decisions(run_id, category);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, categories []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	catJSON, err := json.Marshal(categories)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal categories")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, categories, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(catJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:         id,
		Categories: categories,
		Status:     model.RunStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats *model.RunStatistics) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, categories, status, stats, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, categories, status, stats, created_at, updated_at FROM runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) SaveDecision(ctx context.Context, runID string, d *model.ClassifiedDecision) error {
	record, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal decision")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO decisions (run_id, reference, category, outcome_score, record)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, reference) DO UPDATE SET
		   category = EXCLUDED.category,
		   outcome_score = EXCLUDED.outcome_score,
		   record = EXCLUDED.record`,
		runID, d.Reference, string(d.ComplaintCategory), d.OutcomeScore, string(record),
	)
	return eris.Wrapf(err, "postgres: save decision %s", d.Reference)
}

func (s *PostgresStore) HasReference(ctx context.Context, runID string, reference string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM decisions WHERE run_id = $1 AND reference = $2`,
		runID, reference,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: has reference %s", reference)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context, runID string) ([]model.ClassifiedDecision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM decisions WHERE run_id = $1 ORDER BY reference`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions")
	}
	defer rows.Close()

	var decisions []model.ClassifiedDecision
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		var d model.ClassifiedDecision
		if err := json.Unmarshal(record, &d); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal decision")
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "postgres: iterate decisions")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var run model.Run
	var catJSON []byte
	var statsJSON []byte
	var status string

	if err := row.Scan(&run.ID, &catJSON, &status, &statsJSON, &run.CreatedAt, &run.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, eris.Wrap(err, "store: run not found")
		}
		return nil, eris.Wrap(err, "store: scan run")
	}

	run.Status = model.RunStatus(status)
	if err := json.Unmarshal(catJSON, &run.Categories); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal categories")
	}
	if len(statsJSON) > 0 {
		var stats model.RunStatistics
		if err := json.Unmarshal(statsJSON, &stats); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal stats")
		}
		run.Stats = &stats
	}
	return &run, nil
}
