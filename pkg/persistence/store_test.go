package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/coverage"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/loop"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	store, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func runInfo(id string, started time.Time) loop.RunInfo {
	return loop.RunInfo{
		RunID:          id,
		ProductionPath: "src/Calc.java",
		TestPath:       "test/CalcTest.java",
		UnitID:         "Calc",
		Baseline:       40,
		Options:        loop.Options{MaxAttempts: 3, TargetCoverage: 80, WithRefinement: true},
		Strategy:       "judge",
		StartedAt:      started,
	}
}

func TestRecordRun(t *testing.T) {
	store := openMemory(t)
	ctx := logx.WithRunID(context.Background(), "run-1")
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.OnStart(ctx, runInfo("run-1", started)))
	require.NoError(t, store.OnAttempt(ctx, loop.AttemptReport{
		Index:    0,
		Outcome:  loop.AttemptGenerationFailed,
		Feedback: "\n// Debug Error: step 3/3 (test-code): quota",
		Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, store.OnAttempt(ctx, loop.AttemptReport{
		Index:    1,
		Outcome:  loop.AttemptSucceeded,
		Content:  "class CalcTest {}",
		Coverage: 85.5,
		Measured: true,
	}))
	require.NoError(t, store.OnFinish(ctx, &loop.Result{
		RunID:         "run-1",
		Outcome:       loop.OutcomeSuccess,
		FinalState:    loop.StateSuccess,
		FinalCoverage: 85.5,
		Attempts:      make([]loop.AttemptReport, 2),
	}))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "Calc", run.UnitID)
	assert.Equal(t, coverage.Percentage(40), run.Baseline)
	assert.InDelta(t, 80, run.Target, 1e-9)
	assert.Equal(t, 3, run.MaxAttempts)
	assert.True(t, run.WithRefinement)
	assert.Equal(t, "judge", run.Strategy)
	assert.Equal(t, "success", run.Outcome)
	assert.Equal(t, "SUCCESS", run.FinalState)
	require.NotNil(t, run.FinalCoverage)
	assert.Equal(t, coverage.Percentage(85.5), *run.FinalCoverage)
	assert.Equal(t, 2, run.AttemptsUsed)
	assert.True(t, started.Equal(run.StartedAt))
	assert.NotNil(t, run.FinishedAt)

	attempts, err := store.Attempts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "generation_failed", attempts[0].Outcome)
	assert.Nil(t, attempts[0].Coverage)
	assert.Empty(t, attempts[0].ContentHash)
	assert.Equal(t, 1500*time.Millisecond, attempts[0].Duration)
	require.NotNil(t, attempts[1].Coverage)
	assert.Equal(t, coverage.Percentage(85.5), *attempts[1].Coverage)
	assert.Equal(t, ContentHash("class CalcTest {}"), attempts[1].ContentHash)
	assert.Len(t, attempts[1].ContentHash, 64)
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.OnStart(ctx, runInfo(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "running", runs[0].Outcome)
	assert.Nil(t, runs[0].FinalCoverage)
	assert.Nil(t, runs[0].FinishedAt)
}

func TestAttemptRequiresRunID(t *testing.T) {
	store := openMemory(t)
	err := store.OnAttempt(context.Background(), loop.AttemptReport{Index: 0})
	assert.Error(t, err)
}

func TestAttemptRequiresKnownRun(t *testing.T) {
	store := openMemory(t)
	ctx := logx.WithRunID(context.Background(), "ghost")
	err := store.OnAttempt(ctx, loop.AttemptReport{Index: 0, Outcome: loop.AttemptTestsFailed})
	assert.Error(t, err, "foreign keys are enforced")
}

func TestFinishWithoutStartIsNoop(t *testing.T) {
	store := openMemory(t)
	require.NoError(t, store.OnFinish(context.Background(), &loop.Result{RunID: "never-started", Outcome: loop.OutcomeFailed}))

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := t.TempDir() + "/nested/history.db"
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err, "reopening an up-to-date database is a no-op")
	require.NoError(t, store.Close())
}

func TestMigrateFromVersion1(t *testing.T) {
	db, err := sql.Open("sqlite", MemoryPath)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = GetSchemaVersion(db)
	require.NoError(t, err)
	_, err = db.Exec(schemaV1)
	require.NoError(t, err)
	require.NoError(t, setSchemaVersion(db, 1))

	require.NoError(t, initializeSchemaWithMigrations(db))

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	_, err = db.Exec(`INSERT INTO runs (id, production_path, test_path, unit_id, baseline, target, max_attempts,
		with_refinement, strategy, started_at) VALUES ('x', 'p', 't', 'u', 0, 0, 1, 1, 'smoke', '2026-01-01T00:00:00Z')`)
	assert.NoError(t, err)
}

func TestRejectsNewerSchema(t *testing.T) {
	db, err := sql.Open("sqlite", MemoryPath)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = GetSchemaVersion(db)
	require.NoError(t, err)
	require.NoError(t, setSchemaVersion(db, CurrentSchemaVersion+1))
	assert.Error(t, initializeSchemaWithMigrations(db))
}

func TestContentHash(t *testing.T) {
	assert.Empty(t, ContentHash(""))
	assert.Equal(t, ContentHash("a"), ContentHash("a"))
	assert.NotEqual(t, ContentHash("a"), ContentHash("b"))
}
