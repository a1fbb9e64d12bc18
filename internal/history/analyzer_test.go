package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

type stubOutcomes struct {
	trades   []contracts.TradeOutcome
	err      error
	gotLimit int
}

func (s *stubOutcomes) QueryClosedTrades(_ context.Context, _ string, limit int) ([]contracts.TradeOutcome, error) {
	s.gotLimit = limit
	return s.trades, s.err
}

func trade(pnl float64) contracts.TradeOutcome {
	now := time.Now()
	return contracts.TradeOutcome{
		Symbol:   "AAPL",
		Strategy: contracts.StrategyPutCreditSpread,
		PnL:      pnl,
		OpenedAt: now.AddDate(0, 0, -21),
		ClosedAt: now,
	}
}

func TestAnalyzer_SummarizesWinRateAndPnL(t *testing.T) {
	repo := &stubOutcomes{trades: []contracts.TradeOutcome{
		trade(120), trade(80), trade(95), trade(-140),
	}}
	a := NewAnalyzer(repo, logger.NewNop())

	hc, err := a.Analyze(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.True(t, hc.HasData)
	assert.Equal(t, 4, hc.TradeCount)
	assert.InDelta(t, 75, hc.SuccessRate, 0.01)
	assert.InDelta(t, 38.75, hc.AvgPnL, 0.01)
	assert.Equal(t, 50, repo.gotLimit)
}

func TestAnalyzer_StrongEdgeEmitsPatterns(t *testing.T) {
	repo := &stubOutcomes{trades: []contracts.TradeOutcome{
		trade(90), trade(110), trade(85), trade(70), trade(-60),
	}}
	a := NewAnalyzer(repo, logger.NewNop())

	hc, err := a.Analyze(context.Background(), "AAPL")
	require.NoError(t, err)

	// 80% 승률 + 평균 P&L $59 → 패턴 2종
	require.Len(t, hc.Patterns, 2)
	assert.Contains(t, hc.Patterns[0], "strong historical edge")
	assert.Contains(t, hc.Patterns[1], "positive average P&L")
}

func TestAnalyzer_PoorHistoryEmitsWarningPattern(t *testing.T) {
	repo := &stubOutcomes{trades: []contracts.TradeOutcome{
		trade(-130), trade(-90), trade(40),
	}}
	a := NewAnalyzer(repo, logger.NewNop())

	hc, err := a.Analyze(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.InDelta(t, 33.33, hc.SuccessRate, 0.01)
	require.Len(t, hc.Patterns, 2)
	assert.Contains(t, hc.Patterns[0], "below-average history")
	assert.Contains(t, hc.Patterns[1], "negative average P&L")
}

func TestAnalyzer_NoTradesMeansNoData(t *testing.T) {
	a := NewAnalyzer(&stubOutcomes{}, logger.NewNop())

	hc, err := a.Analyze(context.Background(), "AAPL")
	require.NoError(t, err)

	// 통계를 지어내지 않는다
	assert.False(t, hc.HasData)
	assert.Zero(t, hc.TradeCount)
	assert.Empty(t, hc.Patterns)
}

func TestAnalyzer_NilRepositoryIsNoData(t *testing.T) {
	a := NewAnalyzer(nil, logger.NewNop())

	hc, err := a.Analyze(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, hc.HasData)
}

func TestAnalyzer_QueryErrorIsWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	a := NewAnalyzer(&stubOutcomes{err: boom}, logger.NewNop())

	hc, err := a.Analyze(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "AAPL")
	require.NotNil(t, hc)
	assert.False(t, hc.HasData)
}
