package persistence

import (
	"context"
	"fmt"

	"github.com/wonny/vertex/pkg/database"
)

// schema is applied idempotently at startup. 후보/스냅샷은 JSONB로
// 보존한다 — 읽기 계약은 런 단위 조회뿐이라 정규화할 이유가 없다.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	mode            TEXT NOT NULL,
	symbols         TEXT[] NOT NULL,
	policy_id       TEXT NOT NULL,
	policy_fallback BOOLEAN NOT NULL DEFAULT FALSE,
	as_of           TIMESTAMPTZ NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	closed_at       TIMESTAMPTZ,
	errors          JSONB NOT NULL DEFAULT '[]',
	summary         JSONB
);

CREATE TABLE IF NOT EXISTS policies (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL,
	factors JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS candidates (
	id       BIGSERIAL PRIMARY KEY,
	run_id   TEXT NOT NULL REFERENCES runs(id),
	symbol   TEXT NOT NULL,
	selected BOOLEAN NOT NULL DEFAULT FALSE,
	rank     INT,
	payload  JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_candidates_run ON candidates(run_id);

CREATE TABLE IF NOT EXISTS snapshots (
	id      BIGSERIAL PRIMARY KEY,
	run_id  TEXT NOT NULL REFERENCES runs(id),
	kind    TEXT NOT NULL,
	symbol  TEXT NOT NULL,
	payload JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id);

CREATE TABLE IF NOT EXISTS trade_outcomes (
	id        BIGSERIAL PRIMARY KEY,
	symbol    TEXT NOT NULL,
	strategy  TEXT NOT NULL,
	pnl       DOUBLE PRECISION NOT NULL,
	opened_at TIMESTAMPTZ NOT NULL,
	closed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_symbol ON trade_outcomes(symbol, closed_at DESC);
`

// Migrate applies the schema
func Migrate(ctx context.Context, db *database.DB) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
