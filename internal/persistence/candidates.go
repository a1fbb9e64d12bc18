package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/database"
)

// CandidateRepository persists candidates and the final selection
type CandidateRepository struct {
	db *database.DB
}

// NewCandidateRepository creates a candidate repository
func NewCandidateRepository(db *database.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// SaveCandidates stores all scored candidates for a run
func (r *CandidateRepository) SaveCandidates(ctx context.Context, runID string, candidates []*contracts.Candidate) error {
	for _, c := range candidates {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal candidate %s: %w", c.Symbol, err)
		}
		_, err = r.db.Pool.Exec(ctx, `
			INSERT INTO candidates (run_id, symbol, selected, payload)
			VALUES ($1, $2, FALSE, $3)`,
			runID, c.Symbol, payload)
		if err != nil {
			return fmt.Errorf("save candidate %s: %w", c.Symbol, err)
		}
	}
	return nil
}

// SaveSelection flags the selected candidates with their final rank.
// 선정 후보의 payload는 SelectionInfo가 붙은 버전으로 갱신한다.
func (r *CandidateRepository) SaveSelection(ctx context.Context, runID string, selected []*contracts.Candidate) error {
	for _, c := range selected {
		if c.Selection == nil {
			continue
		}
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal selected candidate %s: %w", c.Symbol, err)
		}
		_, err = r.db.Pool.Exec(ctx, `
			INSERT INTO candidates (run_id, symbol, selected, rank, payload)
			VALUES ($1, $2, TRUE, $3, $4)`,
			runID, c.Symbol, c.Selection.Rank, payload)
		if err != nil {
			return fmt.Errorf("save selection %s: %w", c.Symbol, err)
		}
	}
	return nil
}

// GetSelection returns the selected candidates of a run, by rank
func (r *CandidateRepository) GetSelection(ctx context.Context, runID string) ([]*contracts.Candidate, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT payload FROM candidates
		WHERE run_id = $1 AND selected ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("get selection for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []*contracts.Candidate
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan selection row: %w", err)
		}
		var c contracts.Candidate
		if err := json.Unmarshal(payload, &c); err != nil {
			return nil, fmt.Errorf("decode candidate payload: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
