package reasoning

import (
	"context"
	"fmt"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/internal/guardrails"
	"github.com/wonny/vertex/internal/history"
	"github.com/wonny/vertex/internal/policy"
	"github.com/wonny/vertex/pkg/logger"
)

// Recommendation score bands
const (
	acceptFloor = 60.0
	rejectCeil  = 40.0
)

// Engine runs per-candidate deep reasoning: baseline policy fit, history,
// market synthesis, threshold adjustments, and a final adjusted score.
// ⭐ SSOT: ACCEPT/REJECT/REVIEW 판정은 여기서만
type Engine struct {
	scorer   *policy.Scorer
	analyzer *history.Analyzer
	adjuster *Adjuster
	logger   *logger.Logger
}

// NewEngine creates a deep reasoning engine
func NewEngine(scorer *policy.Scorer, analyzer *history.Analyzer, log *logger.Logger) *Engine {
	return &Engine{
		scorer:   scorer,
		analyzer: analyzer,
		adjuster: NewAdjuster(),
		logger:   log,
	}
}

// Reason builds the candidate's reasoning chain and returns the adjusted
// policy for later re-scoring. 후보 하나의 예기치 못한 패닉은 중립 판정
// (50, REVIEW)으로 흡수하고 런은 계속된다.
func (e *Engine) Reason(ctx context.Context, cand *contracts.Candidate, pol *contracts.Policy, in policy.Input) (adjustedPolicy *contracts.Policy) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(map[string]interface{}{
				"symbol": cand.Symbol,
				"panic":  fmt.Sprint(r),
			}).Error("Reasoning panicked, assigning neutral review")
			cand.Reasoning = &contracts.ReasoningChain{
				BaselineScore:  50,
				AdjustedScore:  50,
				Recommendation: contracts.RecommendReview,
				Error:          fmt.Sprintf("reasoning panic: %v", r),
			}
			adjustedPolicy = pol
		}
	}()

	chain := &contracts.ReasoningChain{}

	// 1. 기준 정책 적합도 (원본 정책 기준)
	compliance := e.scorer.Score(pol, in)
	chain.Compliance = compliance
	chain.BaselineScore = compliance.Score

	// 2. 동일 심볼 과거 성과
	hist, err := e.analyzer.Analyze(ctx, cand.Symbol)
	if err != nil {
		e.logger.WithError(err).WithField("symbol", cand.Symbol).Warn("History lookup failed, proceeding without")
		hist = &contracts.HistoricalContext{}
	}
	chain.History = *hist

	// 3. 시장 팩터 종합
	market := synthesizeMarket(in)
	chain.Market = market

	// 4. 임계값 조정
	earningsRisk := cand.Guardrails[guardrails.FlagEarningsRisk]
	adjusted, changes := e.adjuster.Adjust(pol, hist, &market, earningsRisk)
	chain.Adjustments = changes

	// 5. 보정 점수와 판정
	chain.AdjustedScore = adjustScore(chain.BaselineScore, hist, &market)
	chain.Recommendation = recommend(chain.AdjustedScore)

	cand.Reasoning = chain
	cand.Compliance = compliance
	cand.AddDiagnostic(contracts.StageReasoning, "reasoning_summary", map[string]interface{}{
		"baseline":       chain.BaselineScore,
		"adjusted":       chain.AdjustedScore,
		"recommendation": chain.Recommendation,
		"adjustments":    len(changes),
	})

	return adjusted
}

// synthesizeMarket condenses features/headlines/macro into market factors
func synthesizeMarket(in policy.Input) contracts.MarketFactors {
	m := contracts.MarketFactors{
		IVRegime:      "unknown",
		NewsSentiment: "unknown",
		MacroRegime:   contracts.RegimeUnknown,
	}

	if in.Features != nil {
		m.MacroRegime = in.Features.MacroRegime
		if in.Features.IVRankChain != nil {
			switch {
			case *in.Features.IVRankChain >= 70:
				m.IVRegime = "elevated"
				m.KeyInsights = append(m.KeyInsights, "implied volatility elevated vs chain")
			case *in.Features.IVRankChain <= 25:
				m.IVRegime = "compressed"
				m.KeyInsights = append(m.KeyInsights, "implied volatility compressed vs chain")
			default:
				m.IVRegime = "normal"
			}
		}
		if in.Features.NewsZScore != nil && *in.Features.NewsZScore > 1.0 {
			m.KeyInsights = append(m.KeyInsights, fmt.Sprintf("news volume running hot (z=%.1f)", *in.Features.NewsZScore))
		}
	}

	if len(in.Headlines) > 0 {
		m.SentimentScore = policy.SentimentScore(in.Headlines)
		switch {
		case m.SentimentScore > 0.2:
			m.NewsSentiment = "positive"
			m.KeyInsights = append(m.KeyInsights, "news flow skews bullish")
		case m.SentimentScore < -0.2:
			m.NewsSentiment = "negative"
			m.KeyInsights = append(m.KeyInsights, "news flow skews bearish")
		default:
			m.NewsSentiment = "neutral"
		}
	}

	if m.MacroRegime == contracts.RegimeRiskOff {
		m.KeyInsights = append(m.KeyInsights, "risk-off macro backdrop")
	}

	return m
}

// adjustScore applies discrete bonuses/penalties to the baseline, clamped
// to [0,100].
func adjustScore(baseline float64, hist *contracts.HistoricalContext, market *contracts.MarketFactors) float64 {
	score := baseline

	if hist != nil && hist.HasData {
		if hist.SuccessRate > 70 {
			score += 10
		} else if hist.SuccessRate < 40 {
			score -= 10
		}
	}

	if market != nil {
		switch market.IVRegime {
		case "elevated":
			score += 5 // 크레딧 매도에 유리한 변동성 환경
		case "compressed":
			score -= 5
		}
		switch market.NewsSentiment {
		case "positive":
			score += 5
		case "negative":
			score -= 10
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func recommend(adjusted float64) contracts.Recommendation {
	switch {
	case adjusted >= acceptFloor:
		return contracts.RecommendAccept
	case adjusted < rejectCeil:
		return contracts.RecommendReject
	default:
		return contracts.RecommendReview
	}
}
