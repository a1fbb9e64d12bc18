package history

import (
	"context"
	"fmt"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

// Analyzer derives win rate / P&L statistics from prior same-symbol trades
type Analyzer struct {
	outcomes contracts.OutcomeRepository
	logger   *logger.Logger
	limit    int
}

// NewAnalyzer creates a historical pattern analyzer. 최근 50건까지만 본다.
func NewAnalyzer(outcomes contracts.OutcomeRepository, log *logger.Logger) *Analyzer {
	return &Analyzer{outcomes: outcomes, logger: log, limit: 50}
}

// Analyze queries closed trades for the symbol and summarizes them.
// 이력이 없으면 HasData=false — 통계를 지어내지 않는다.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (*contracts.HistoricalContext, error) {
	hc := &contracts.HistoricalContext{}

	if a.outcomes == nil {
		return hc, nil
	}

	trades, err := a.outcomes.QueryClosedTrades(ctx, symbol, a.limit)
	if err != nil {
		return hc, fmt.Errorf("query closed trades for %s: %w", symbol, err)
	}
	if len(trades) == 0 {
		return hc, nil
	}

	hc.HasData = true
	hc.TradeCount = len(trades)

	var wins int
	var totalPnL float64
	for _, t := range trades {
		totalPnL += t.PnL
		if t.PnL > 0 {
			wins++
		}
	}
	hc.SuccessRate = float64(wins) / float64(len(trades)) * 100
	hc.AvgPnL = totalPnL / float64(len(trades))

	hc.Patterns = derivePatterns(hc)

	a.logger.WithFields(map[string]interface{}{
		"symbol":       symbol,
		"trade_count":  hc.TradeCount,
		"success_rate": hc.SuccessRate,
	}).Debug("Analyzed historical outcomes")

	return hc, nil
}

// derivePatterns emits qualitative strings at fixed success-rate and P&L bands
func derivePatterns(hc *contracts.HistoricalContext) []string {
	var patterns []string

	switch {
	case hc.SuccessRate > 70:
		patterns = append(patterns, fmt.Sprintf("strong historical edge: %.0f%% win rate over %d trades", hc.SuccessRate, hc.TradeCount))
	case hc.SuccessRate < 40:
		patterns = append(patterns, fmt.Sprintf("below-average history: %.0f%% win rate over %d trades", hc.SuccessRate, hc.TradeCount))
	}

	switch {
	case hc.AvgPnL > 50:
		patterns = append(patterns, fmt.Sprintf("strongly positive average P&L ($%.2f)", hc.AvgPnL))
	case hc.AvgPnL < -50:
		patterns = append(patterns, fmt.Sprintf("strongly negative average P&L ($%.2f)", hc.AvgPnL))
	}

	return patterns
}
