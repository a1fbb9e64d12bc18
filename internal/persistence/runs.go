package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/database"
)

// ErrRunNotFound is returned when a run id does not exist
var ErrRunNotFound = errors.New("run not found")

// RunRepository persists run lifecycle records
type RunRepository struct {
	db *database.DB
}

// NewRunRepository creates a run repository
func NewRunRepository(db *database.DB) *RunRepository {
	return &RunRepository{db: db}
}

// OpenRun inserts the run row at pipeline start
func (r *RunRepository) OpenRun(ctx context.Context, run *contracts.Run) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO runs (id, mode, symbols, policy_id, policy_fallback, as_of, started_at, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '[]')`,
		run.ID, run.Mode, run.Symbols, run.PolicyID, run.PolicyFallback, run.AsOf, run.StartedAt)
	if err != nil {
		return fmt.Errorf("open run %s: %w", run.ID, err)
	}
	return nil
}

// CloseRun marks the run closed with its summary and accumulated errors.
// 부분 실패 여부와 무관하게 런 종료 시 항상 호출된다.
func (r *RunRepository) CloseRun(ctx context.Context, runID string, summary *contracts.RunSummary) error {
	sumJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		UPDATE runs SET closed_at = $2, summary = $3 WHERE id = $1`,
		runID, time.Now(), sumJSON)
	if err != nil {
		return fmt.Errorf("close run %s: %w", runID, err)
	}
	return nil
}

// AppendErrors persists the run's error list
func (r *RunRepository) AppendErrors(ctx context.Context, runID string, stageErrors []contracts.StageError) error {
	errJSON, err := json.Marshal(stageErrors)
	if err != nil {
		return fmt.Errorf("marshal stage errors: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx,
		`UPDATE runs SET errors = $2 WHERE id = $1`, runID, errJSON)
	if err != nil {
		return fmt.Errorf("append errors to run %s: %w", runID, err)
	}
	return nil
}

// GetRun fetches one run with its summary
func (r *RunRepository) GetRun(ctx context.Context, runID string) (*contracts.Run, *contracts.RunSummary, error) {
	var (
		run     contracts.Run
		errJSON []byte
		sumJSON []byte
	)
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, mode, symbols, policy_id, policy_fallback, as_of, started_at, closed_at, errors, summary
		FROM runs WHERE id = $1`, runID,
	).Scan(&run.ID, &run.Mode, &run.Symbols, &run.PolicyID, &run.PolicyFallback,
		&run.AsOf, &run.StartedAt, &run.ClosedAt, &errJSON, &sumJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrRunNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	if len(errJSON) > 0 {
		if err := json.Unmarshal(errJSON, &run.Errors); err != nil {
			return nil, nil, fmt.Errorf("decode run errors: %w", err)
		}
	}

	var summary *contracts.RunSummary
	if len(sumJSON) > 0 {
		summary = &contracts.RunSummary{}
		if err := json.Unmarshal(sumJSON, summary); err != nil {
			return nil, nil, fmt.Errorf("decode run summary: %w", err)
		}
	}
	return &run, summary, nil
}

// ListRuns returns the most recent runs, newest first
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]contracts.Run, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, mode, symbols, policy_id, policy_fallback, as_of, started_at, closed_at
		FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []contracts.Run
	for rows.Next() {
		var run contracts.Run
		if err := rows.Scan(&run.ID, &run.Mode, &run.Symbols, &run.PolicyID,
			&run.PolicyFallback, &run.AsOf, &run.StartedAt, &run.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
