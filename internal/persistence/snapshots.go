package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/database"
)

// Snapshot kinds
const (
	kindContracts = "contracts"
	kindFeatures  = "features"
)

// SnapshotRepository persists intermediate stage outputs for audit
type SnapshotRepository struct {
	db *database.DB
}

// NewSnapshotRepository creates a snapshot repository
func NewSnapshotRepository(db *database.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SaveContracts stores the option chain snapshot for a run
func (r *SnapshotRepository) SaveContracts(ctx context.Context, runID string, chain *contracts.OptionChain) error {
	return r.save(ctx, runID, kindContracts, chain.Symbol, chain)
}

// SaveFeatures stores the derived features for a run
func (r *SnapshotRepository) SaveFeatures(ctx context.Context, runID string, features *contracts.SymbolFeatures) error {
	return r.save(ctx, runID, kindFeatures, features.Symbol, features)
}

func (r *SnapshotRepository) save(ctx context.Context, runID, kind, symbol string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", kind, err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO snapshots (run_id, kind, symbol, payload)
		VALUES ($1, $2, $3, $4)`,
		runID, kind, symbol, raw)
	if err != nil {
		return fmt.Errorf("save %s snapshot for %s: %w", kind, symbol, err)
	}
	return nil
}
