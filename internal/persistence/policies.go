package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/database"
)

// PolicyRepository loads stored trading policies
type PolicyRepository struct {
	db *database.DB
}

// NewPolicyRepository creates a policy repository
func NewPolicyRepository(db *database.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// Load implements contracts.PolicyLoader. 행이 없으면 ErrPolicyNotFound,
// JSON 형상이 깨졌으면 ErrPolicyShape — 호출자는 기본 정책으로 폴백한다.
func (r *PolicyRepository) Load(ctx context.Context, policyID string) (*contracts.Policy, error) {
	var (
		name    string
		factors []byte
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, factors FROM policies WHERE id = $1`, policyID,
	).Scan(&name, &factors)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load policy %s: %w", policyID, err)
	}

	p := &contracts.Policy{ID: policyID, Name: name}
	if err := json.Unmarshal(factors, &p.Factors); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrPolicyShape, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Save upserts a policy definition
func (r *PolicyRepository) Save(ctx context.Context, p *contracts.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	factors, err := json.Marshal(p.Factors)
	if err != nil {
		return fmt.Errorf("marshal policy factors: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO policies (id, name, factors) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, factors = EXCLUDED.factors`,
		p.ID, p.Name, factors)
	if err != nil {
		return fmt.Errorf("save policy %s: %w", p.ID, err)
	}
	return nil
}
