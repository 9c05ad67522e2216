package persistence

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/coverage"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/logx"
	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/loop"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID             string
	ProductionPath string
	TestPath       string
	UnitID         string
	Baseline       coverage.Percentage
	Target         float64
	MaxAttempts    int
	WithRefinement bool
	Strategy       string
	Outcome        string
	FinalState     string
	FinalCoverage  *coverage.Percentage
	AttemptsUsed   int
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// AttemptRecord is one row of the attempts table.
type AttemptRecord struct {
	RunID       string
	Index       int
	Outcome     string
	Coverage    *coverage.Percentage
	Feedback    string
	ContentHash string
	Duration    time.Duration
	RecordedAt  time.Time
}

// Store records runs as a loop.Observer and answers history queries.
type Store struct {
	loop.NopObserver
	db *sql.DB
}

// Open opens or creates the history database at path and migrates it to the
// current schema. Use MemoryPath for a throwaway database.
func Open(path string) (*Store, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: a single writer, and an in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	if path == MemoryPath {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}
	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnStart inserts a run row.
func (s *Store) OnStart(ctx context.Context, info loop.RunInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, production_path, test_path, unit_id, baseline, target, max_attempts,
			with_refinement, strategy, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.RunID, info.ProductionPath, info.TestPath, info.UnitID, float64(info.Baseline),
		info.Options.TargetCoverage, info.Options.MaxAttempts, info.Options.WithRefinement,
		info.Strategy, formatTime(info.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", info.RunID, err)
	}
	return nil
}

// OnAttempt inserts an attempt row for the run carried by ctx.
func (s *Store) OnAttempt(ctx context.Context, report loop.AttemptReport) error {
	runID := logx.RunIDFrom(ctx)
	if runID == "" {
		return fmt.Errorf("no run id in context for attempt %d", report.Index)
	}
	var cov any
	if report.Measured {
		cov = float64(report.Coverage)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (run_id, idx, outcome, coverage, feedback, content_hash, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, report.Index, string(report.Outcome), cov, report.Feedback,
		ContentHash(report.Content), report.Duration.Milliseconds(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to record attempt %d of run %s: %w", report.Index, runID, err)
	}
	return nil
}

// OnFinish stores the run's outcome. Runs that failed before their baseline
// have no row and are not recorded.
func (s *Store) OnFinish(ctx context.Context, res *loop.Result) error {
	var finalCoverage any
	if len(res.Attempts) > 0 || res.Outcome == loop.OutcomeSuccess {
		finalCoverage = float64(res.FinalCoverage)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET outcome = ?, final_state = ?, final_coverage = ?, attempts_used = ?, finished_at = ?
		WHERE id = ?`,
		string(res.Outcome), string(res.FinalState), finalCoverage, len(res.Attempts),
		formatTime(time.Now()), res.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", res.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, production_path, test_path, unit_id, baseline, target, max_attempts, with_refinement,
			strategy, outcome, final_state, final_coverage, attempts_used, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunRecord
	for rows.Next() {
		var (
			r             RunRecord
			baseline      float64
			finalCoverage sql.NullFloat64
			startedAt     string
			finishedAt    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ProductionPath, &r.TestPath, &r.UnitID, &baseline, &r.Target,
			&r.MaxAttempts, &r.WithRefinement, &r.Strategy, &r.Outcome, &r.FinalState, &finalCoverage,
			&r.AttemptsUsed, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Baseline = coverage.Percentage(baseline)
		if finalCoverage.Valid {
			p := coverage.Percentage(finalCoverage.Float64)
			r.FinalCoverage = &p
		}
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			t, err := parseTime(finishedAt.String)
			if err != nil {
				return nil, err
			}
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Attempts returns the attempts of a run in order.
func (s *Store) Attempts(ctx context.Context, runID string) ([]AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, idx, outcome, coverage, feedback, content_hash, duration_ms, recorded_at
		FROM attempts WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts of run %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []AttemptRecord
	for rows.Next() {
		var (
			a          AttemptRecord
			cov        sql.NullFloat64
			durationMS int64
			recordedAt string
		)
		if err := rows.Scan(&a.RunID, &a.Index, &a.Outcome, &cov, &a.Feedback, &a.ContentHash,
			&durationMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		if cov.Valid {
			p := coverage.Percentage(cov.Float64)
			a.Coverage = &p
		}
		a.Duration = time.Duration(durationMS) * time.Millisecond
		if a.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attempts: %w", err)
	}
	return attempts, nil
}

// ContentHash returns the hex SHA-256 of content, or "" for empty content.
func ContentHash(content string) string {
	if content == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// timeLayout has fixed-width fractional seconds so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return t, nil
}
