package guardrails

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/internal/features"
	"github.com/wonny/vertex/pkg/logger"
)

// Guardrail flag keys attached to candidates
const (
	FlagEarningsRisk   = "earnings_risk"
	FlagMacroEventRisk = "macro_event_risk"
	FlagNewsSpike      = "news_spike"
)

// CheckerConfig controls guardrail queries
type CheckerConfig struct {
	EarningsRecencyDays int
	MacroRecencyDays    int
	NewsRecencyDays     int
	SearchDepth         int
	NewsSpikeZ          float64 // z-score 이상이면 스파이크 플래그
}

// DefaultCheckerConfig returns production defaults
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		EarningsRecencyDays: 14,
		MacroRecencyDays:    7,
		NewsRecencyDays:     90,
		SearchDepth:         20,
		NewsSpikeZ:          2.0,
	}
}

// Checker flags binary risk conditions per symbol via bounded text search.
// 쿼리 실패 시 플래그는 false로 남는다 (fail-open) — 다운스트림은 false를
// "안전 보장"이 아니라 "미확인"으로 취급해야 한다.
type Checker struct {
	config   CheckerConfig
	research contracts.ResearchProvider
	logger   *logger.Logger
}

// NewChecker creates a guardrail checker
func NewChecker(cfg CheckerConfig, research contracts.ResearchProvider, log *logger.Logger) *Checker {
	return &Checker{config: cfg, research: research, logger: log}
}

// SymbolResult carries per-symbol guardrail findings shared by all of the
// symbol's candidates.
type SymbolResult struct {
	Flags     map[string]bool
	Headlines []contracts.Headline
	NewsZ     *float64
}

// Check runs the guardrail queries for one symbol and updates the symbol's
// features with the news-volume z-score.
func (c *Checker) Check(ctx context.Context, symbol string, feats *contracts.SymbolFeatures, asOf time.Time) *SymbolResult {
	result := &SymbolResult{Flags: map[string]bool{
		FlagEarningsRisk:   false,
		FlagMacroEventRisk: false,
		FlagNewsSpike:      false,
	}}

	// (a) 실적 발표 임박 여부
	earnings, err := c.research.Search(ctx,
		fmt.Sprintf("%s earnings report date announcement", symbol),
		c.config.EarningsRecencyDays, c.config.SearchDepth)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Earnings search failed, flag stays false")
	} else if len(earnings) > 0 {
		result.Flags[FlagEarningsRisk] = true
	}

	// (b) 매크로 이벤트 (금리 결정, 인플레이션 발표)
	macro, err := c.research.Search(ctx,
		"FOMC rate decision CPI inflation release this week",
		c.config.MacroRecencyDays, c.config.SearchDepth)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Macro event search failed, flag stays false")
	} else if len(macro) > 0 {
		result.Flags[FlagMacroEventRisk] = true
	}

	// (c) 뉴스 볼륨 스파이크: 7일 평균 vs 90일 기준선
	headlines, err := c.research.Search(ctx,
		fmt.Sprintf("%s stock news", symbol),
		c.config.NewsRecencyDays, c.config.SearchDepth*5)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("News volume search failed, flag stays false")
	} else {
		result.Headlines = headlines
		count7, count90, z := features.NewsVolumeZ(headlines, asOf)
		result.NewsZ = z
		if feats != nil {
			feats.NewsCount7D = count7
			feats.NewsCount90D = count90
			feats.NewsZScore = z
		}
		if z != nil && *z > c.config.NewsSpikeZ {
			result.Flags[FlagNewsSpike] = true
		}
	}

	return result
}

// Apply copies the symbol-level flags onto each candidate and records a
// diagnostic line.
func (c *Checker) Apply(result *SymbolResult, cands []*contracts.Candidate) {
	for _, cand := range cands {
		if cand.Guardrails == nil {
			cand.Guardrails = make(map[string]bool, len(result.Flags))
		}
		for k, v := range result.Flags {
			cand.Guardrails[k] = v
		}
		cand.AddDiagnostic(contracts.StageGuardrails, "guardrail_flags", result.Flags)
	}
}
