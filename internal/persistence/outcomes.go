package persistence

import (
	"context"
	"fmt"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/database"
)

// OutcomeRepository queries closed trades for the historical analyzer
type OutcomeRepository struct {
	db *database.DB
}

// NewOutcomeRepository creates an outcome repository
func NewOutcomeRepository(db *database.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// QueryClosedTrades returns the most recent closed trades for a symbol
func (r *OutcomeRepository) QueryClosedTrades(ctx context.Context, symbol string, limit int) ([]contracts.TradeOutcome, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT symbol, strategy, pnl, opened_at, closed_at
		FROM trade_outcomes
		WHERE symbol = $1
		ORDER BY closed_at DESC
		LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query closed trades for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []contracts.TradeOutcome
	for rows.Next() {
		var t contracts.TradeOutcome
		if err := rows.Scan(&t.Symbol, &t.Strategy, &t.PnL, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan trade outcome: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordOutcome appends one closed trade row
func (r *OutcomeRepository) RecordOutcome(ctx context.Context, t contracts.TradeOutcome) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO trade_outcomes (symbol, strategy, pnl, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		t.Symbol, t.Strategy, t.PnL, t.OpenedAt, t.ClosedAt)
	if err != nil {
		return fmt.Errorf("record outcome for %s: %w", t.Symbol, err)
	}
	return nil
}
