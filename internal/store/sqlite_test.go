package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairclaim/fos-cli/internal/config"
	"github.com/fairclaim/fos-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleDecision(ref string, score float64) *model.ClassifiedDecision {
	return &model.ClassifiedDecision{
		SchemaVersion:     model.SchemaVersion,
		Reference:         ref,
		URL:               "https://example.org/ombudsman-decisions/" + ref,
		ComplaintCategory: model.CategoryPCP,
		Outcome:           "upheld",
		OutcomeScore:      score,
		KeyArguments:      []string{},
		EvidenceCited:     []string{"agreement"},
		LegalReferences:   []string{},
		CompensationType:  model.CompensationUnknown,
		FullText:          "full decision text",
	}
}

func TestSQLiteRunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"credit-cards", "payday-loans"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusWalking))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusWalking, got.Status)
	assert.Equal(t, []string{"credit-cards", "payday-loans"}, got.Categories)
	assert.Nil(t, got.Stats)

	stats := &model.RunStatistics{SchemaVersion: model.SchemaVersion, TotalProcessed: 7}
	require.NoError(t, s.CompleteRun(ctx, run.ID, stats))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 7, got.Stats.TotalProcessed)
}

func TestSQLiteRunNotFound(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "missing")
	assert.Error(t, err)
	assert.Error(t, s.UpdateRunStatus(ctx, "missing", model.RunStatusFailed))
	assert.Error(t, s.CompleteRun(ctx, "missing", &model.RunStatistics{}))
}

func TestSQLiteSaveDecisionUpsert(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"credit-cards"})
	require.NoError(t, err)

	require.NoError(t, s.SaveDecision(ctx, run.ID, sampleDecision("DRN-1", 0.0)))

	has, err := s.HasReference(ctx, run.ID, "DRN-1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasReference(ctx, run.ID, "DRN-2")
	require.NoError(t, err)
	assert.False(t, has)

	// Same reference again replaces the record instead of erroring.
	require.NoError(t, s.SaveDecision(ctx, run.ID, sampleDecision("DRN-1", 1.0)))

	decisions, err := s.ListDecisions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, 1.0, decisions[0].OutcomeScore)
	assert.Equal(t, "full decision text", decisions[0].FullText)
}

func TestSQLiteListDecisionsOrdered(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"credit-cards"})
	require.NoError(t, err)

	for _, ref := range []string{"DRN-3", "DRN-1", "DRN-2"} {
		require.NoError(t, s.SaveDecision(ctx, run.ID, sampleDecision(ref, 1.0)))
	}

	decisions, err := s.ListDecisions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, decisions, 3)
	assert.Equal(t, "DRN-1", decisions[0].Reference)
	assert.Equal(t, "DRN-2", decisions[1].Reference)
	assert.Equal(t, "DRN-3", decisions[2].Reference)
}

func TestSQLiteListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for range 3 {
		_, err := s.CreateRun(ctx, []string{"credit-cards"})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "bolt"})
	assert.Error(t, err)
}
