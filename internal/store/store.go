package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/fairclaim/fos-cli/internal/config"
	"github.com/fairclaim/fos-cli/internal/model"
)

// Store defines the persistence interface for pipeline runs and their
// classified decisions. It backs incremental progress during a run and
// lets the process/stats commands re-read prior runs without
// re-crawling the archive.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, categories []string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, stats *model.RunStatistics) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Decisions
	SaveDecision(ctx context.Context, runID string, d *model.ClassifiedDecision) error
	HasReference(ctx context.Context, runID string, reference string) (bool, error)
	ListDecisions(ctx context.Context, runID string) ([]model.ClassifiedDecision, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DSN)
	case "postgres":
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
