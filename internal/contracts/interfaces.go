package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: 외부 협력자 및 Repository 인터페이스 정의는 여기서만

// PolicyLoader loads the active trading policy.
// 실패(ErrPolicyNotFound/ErrPolicyShape)는 "정책 없음"으로 처리된다.
type PolicyLoader interface {
	Load(ctx context.Context, policyID string) (*Policy, error)
}

// OptionChainProvider fetches an option chain snapshot
type OptionChainProvider interface {
	FetchChain(ctx context.Context, symbol string) (*OptionChain, error)
}

// QuoteProvider fetches an underlying price snapshot
type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
}

// FundamentalsProvider fetches company overview data
type FundamentalsProvider interface {
	FetchOverview(ctx context.Context, symbol string) (*Fundamentals, error)
}

// MacroProvider fetches macro time series by id
type MacroProvider interface {
	FetchSeries(ctx context.Context, seriesIDs []string) (map[string]MacroSeries, error)
}

// ResearchProvider runs a bounded text search and returns ranked snippets
type ResearchProvider interface {
	Search(ctx context.Context, query string, recencyDays, depth int) ([]Headline, error)
}

// TradeOutcome is one closed/expired trade row
type TradeOutcome struct {
	Symbol   string    `json:"symbol"`
	Strategy string    `json:"strategy"`
	PnL      float64   `json:"pnl"`
	OpenedAt time.Time `json:"opened_at"`
	ClosedAt time.Time `json:"closed_at"`
}

// OutcomeRepository queries prior closed trades for a symbol
type OutcomeRepository interface {
	QueryClosedTrades(ctx context.Context, symbol string, limit int) ([]TradeOutcome, error)
}

// RunRepository persists run lifecycle records.
// 모든 쓰기는 best-effort: 실패는 로깅만 하고 런을 죽이지 않는다.
type RunRepository interface {
	OpenRun(ctx context.Context, run *Run) error
	CloseRun(ctx context.Context, runID string, summary *RunSummary) error
	GetRun(ctx context.Context, runID string) (*Run, *RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// SnapshotRepository persists intermediate stage outputs for audit
type SnapshotRepository interface {
	SaveContracts(ctx context.Context, runID string, chain *OptionChain) error
	SaveFeatures(ctx context.Context, runID string, features *SymbolFeatures) error
}

// CandidateRepository persists candidates with their attached scores
type CandidateRepository interface {
	SaveCandidates(ctx context.Context, runID string, candidates []*Candidate) error
	SaveSelection(ctx context.Context, runID string, selected []*Candidate) error
	GetSelection(ctx context.Context, runID string) ([]*Candidate, error)
}

// RationaleWriter is the (out-of-process) narrative generator hook.
// 없으면 건너뛴다. 실패는 런에 영향을 주지 않는다.
type RationaleWriter interface {
	WriteRationale(ctx context.Context, runID string, selected []*Candidate) error
}
