package reasoning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/internal/guardrails"
	"github.com/wonny/vertex/internal/history"
	"github.com/wonny/vertex/internal/policy"
	"github.com/wonny/vertex/pkg/logger"
)

type stubOutcomes struct {
	trades []contracts.TradeOutcome
	err    error
}

func (s stubOutcomes) QueryClosedTrades(_ context.Context, _ string, _ int) ([]contracts.TradeOutcome, error) {
	return s.trades, s.err
}

type panickingOutcomes struct{}

func (panickingOutcomes) QueryClosedTrades(_ context.Context, _ string, _ int) ([]contracts.TradeOutcome, error) {
	panic("outcome storage corrupted")
}

func closedTrades(wins, losses int) []contracts.TradeOutcome {
	var out []contracts.TradeOutcome
	now := time.Now()
	for i := 0; i < wins; i++ {
		out = append(out, contracts.TradeOutcome{Symbol: "SPY", PnL: 85, OpenedAt: now.AddDate(0, 0, -30), ClosedAt: now})
	}
	for i := 0; i < losses; i++ {
		out = append(out, contracts.TradeOutcome{Symbol: "SPY", PnL: -120, OpenedAt: now.AddDate(0, 0, -30), ClosedAt: now})
	}
	return out
}

func newTestEngine(outcomes contracts.OutcomeRepository) *Engine {
	log := logger.NewNop()
	scorer := policy.NewScorer(policy.NewRegistry(), log)
	return NewEngine(scorer, history.NewAnalyzer(outcomes, log), log)
}

// compliantCandidate passes every default policy factor
func compliantCandidate() *contracts.Candidate {
	return &contracts.Candidate{
		Symbol:   "SPY",
		Strategy: contracts.StrategyPutCreditSpread,
		Short: contracts.ContractLeg{
			Strike: 465, Delta: -0.10, Bid: 2.10, Ask: 2.20, OpenInterest: 1200,
		},
		Long: contracts.ContractLeg{
			Strike: 460, Delta: -0.07, Bid: 0.60, Ask: 0.70, OpenInterest: 900,
		},
		DTE:             10,
		UnderlyingPrice: 480,
		Width:           5,
		Credit:          1.50,
		MaxProfit:       1.50,
		MaxLoss:         3.50,
		EstPOP:          0.88,
	}
}

func ivRank(v float64) *contracts.SymbolFeatures {
	return &contracts.SymbolFeatures{Symbol: "SPY", IVRankChain: &v}
}

func TestEngine_TailwindsRaiseAdjustedScore(t *testing.T) {
	// 80% 승률 이력 + elevated IV + 호재성 뉴스 → 기준점수 위로 보정
	e := newTestEngine(stubOutcomes{trades: closedTrades(16, 4)})
	cand := compliantCandidate()
	in := policy.Input{
		Candidate: cand,
		Features:  ivRank(75),
		Headlines: []contracts.Headline{
			{Title: "SPY components rally on record earnings beat"},
			{Title: "Analysts upgrade outlook, strong guidance"},
		},
	}

	adjusted := e.Reason(context.Background(), cand, policy.DefaultFactors(), in)

	require.NotNil(t, cand.Reasoning)
	chain := cand.Reasoning
	assert.Empty(t, chain.Error)
	assert.True(t, chain.History.HasData)
	assert.InDelta(t, 80, chain.History.SuccessRate, 0.01)
	assert.Equal(t, "elevated", chain.Market.IVRegime)
	assert.Equal(t, "positive", chain.Market.NewsSentiment)
	assert.Greater(t, chain.AdjustedScore, chain.BaselineScore)
	assert.Equal(t, contracts.RecommendAccept, chain.Recommendation)

	// 승률 >75% → 델타 한도 완화가 조정 정책에 반영
	require.NotNil(t, adjusted)
	f := adjusted.Factor("delta")
	require.NotNil(t, f)
	assert.InDelta(t, 0.18*1.15, *f.Threshold, 1e-9)
}

func TestEngine_HeadwindsLowerAdjustedScore(t *testing.T) {
	// 30% 승률 + 악재성 뉴스 → 기준점수 아래로 보정, 델타 한도 긴축
	e := newTestEngine(stubOutcomes{trades: closedTrades(3, 7)})
	cand := compliantCandidate()
	in := policy.Input{
		Candidate: cand,
		Features:  ivRank(50),
		Headlines: []contracts.Headline{
			{Title: "Earnings miss triggers downgrade"},
			{Title: "Regulators open probe, shares plunge in selloff"},
		},
	}

	adjusted := e.Reason(context.Background(), cand, policy.DefaultFactors(), in)

	chain := cand.Reasoning
	require.NotNil(t, chain)
	assert.Equal(t, "negative", chain.Market.NewsSentiment)
	assert.InDelta(t, chain.BaselineScore-20, chain.AdjustedScore, 0.01)

	f := adjusted.Factor("delta")
	require.NotNil(t, f)
	assert.InDelta(t, 0.18*0.75, *f.Threshold, 1e-9)
}

func TestEngine_HistoryLookupFailureIsNonFatal(t *testing.T) {
	e := newTestEngine(stubOutcomes{err: assert.AnError})
	cand := compliantCandidate()

	e.Reason(context.Background(), cand, policy.DefaultFactors(), policy.Input{Candidate: cand, Features: ivRank(50)})

	require.NotNil(t, cand.Reasoning)
	assert.False(t, cand.Reasoning.History.HasData)
	assert.Empty(t, cand.Reasoning.Error)
}

func TestEngine_PanicYieldsNeutralReview(t *testing.T) {
	e := newTestEngine(panickingOutcomes{})
	cand := compliantCandidate()
	pol := policy.DefaultFactors()

	adjusted := e.Reason(context.Background(), cand, pol, policy.Input{Candidate: cand})

	require.NotNil(t, cand.Reasoning)
	assert.Equal(t, 50.0, cand.Reasoning.BaselineScore)
	assert.Equal(t, 50.0, cand.Reasoning.AdjustedScore)
	assert.Equal(t, contracts.RecommendReview, cand.Reasoning.Recommendation)
	assert.Contains(t, cand.Reasoning.Error, "reasoning panic")
	assert.Same(t, pol, adjusted, "panic falls back to the unadjusted policy")
}

func TestEngine_EarningsGuardrailTightensDelta(t *testing.T) {
	e := newTestEngine(stubOutcomes{})
	cand := compliantCandidate()
	cand.Guardrails = map[string]bool{guardrails.FlagEarningsRisk: true}

	adjusted := e.Reason(context.Background(), cand, policy.DefaultFactors(), policy.Input{Candidate: cand, Features: ivRank(50)})

	f := adjusted.Factor("delta")
	require.NotNil(t, f)
	assert.InDelta(t, 0.135, *f.Threshold, 1e-9)
	require.NotEmpty(t, cand.Reasoning.Adjustments)
	assert.Contains(t, cand.Reasoning.Adjustments[0].Reason, "earnings")
}
