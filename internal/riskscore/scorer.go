package riskscore

import (
	"fmt"
	"math"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

// ScorerConfig controls the policy-independent risk scorer
type ScorerConfig struct {
	RiskFreeRate       float64 // 연율
	NoiseFloor         float64 // 비교 시 승패 선언에 필요한 종합 점수 격차
	RuinCapital        float64 // 달러 손실이 이 규모에 근접할수록 ruin 할인
	ContractMultiplier float64
}

// DefaultScorerConfig returns production defaults
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		RiskFreeRate:       0.05,
		NoiseFloor:         3.0,
		RuinCapital:        500,
		ContractMultiplier: 100,
	}
}

// Composite weights, tuned for short-duration income trades
const (
	weightTraditional  = 0.50
	weightCapitalEff   = 0.25
	weightProbWeighted = 0.15
	weightEVPerDollar  = 0.10
)

// Scorer computes trade-economics scores independent of the user policy.
// 정책 점수의 sanity check 겸 타이브레이커로 쓰인다.
type Scorer struct {
	config ScorerConfig
	logger *logger.Logger
}

// NewScorer creates a risk-adjusted scorer
func NewScorer(cfg ScorerConfig, log *logger.Logger) *Scorer {
	return &Scorer{config: cfg, logger: log}
}

// Score computes the risk-adjusted score for one candidate.
// maxLoss가 0 이하면 채점 불가 — nil 반환.
func (s *Scorer) Score(cand *contracts.Candidate) *contracts.RiskAdjustedScore {
	if cand == nil || cand.MaxLoss <= 0 || cand.DTE <= 0 {
		return nil
	}

	pWin := cand.EstPOP
	if pWin <= 0 || pWin >= 1 {
		pWin = 1 - math.Abs(cand.Short.Delta)
		if pWin <= 0 || pWin >= 1 {
			pWin = 0.7
		}
	}
	pLoss := 1 - pWin

	odds := cand.MaxProfit / cand.MaxLoss // 배당률 b
	rs := &contracts.RiskAdjustedScore{}

	rs.ExpectedValue = pWin*cand.MaxProfit - pLoss*cand.MaxLoss
	rs.EVPerDollar = rs.ExpectedValue / cand.MaxLoss
	rs.ROIPct = odds * 100
	rs.AnnualizedROI = odds * (365 / float64(cand.DTE)) * 100
	rs.ProbWeightedROI = pWin * rs.ROIPct

	// 이항 결과의 sharpe 유사치: 위험 1달러당 평균/표준편차, 연율화
	periodsPerYear := 365 / float64(cand.DTE)
	mean := rs.EVPerDollar * periodsPerYear
	std := (odds + 1) * math.Sqrt(pWin*pLoss) * math.Sqrt(periodsPerYear)
	if std > 0 {
		rs.SharpeLike = (mean - s.config.RiskFreeRate) / std
	}

	// Kelly: 엣지 없으면 0, 절대 음수 금지
	rs.KellyFraction = math.Max(0, (pWin*odds-pLoss)/odds)

	// 절대 달러 손실 규모에 따른 ruin 할인 — 같은 비율이라도 좁은
	// 스프레드가 러인 위험이 낮다
	maxLossDollars := cand.MaxLoss * s.config.ContractMultiplier
	ruinFactor := math.Min(1, s.config.RuinCapital/maxLossDollars)
	rs.RuinAdjustedROI = rs.ROIPct * ruinFactor

	traditional := clamp(rs.RuinAdjustedROI/50*100, 0, 100)
	rs.CapitalEfficiency = clamp(rs.AnnualizedROI/200*100, 0, 100)
	probWeighted := clamp(rs.ProbWeightedROI/30*100, 0, 100)
	evScore := clamp(rs.EVPerDollar/0.10*100, 0, 100)

	rs.Composite = weightTraditional*traditional +
		weightCapitalEff*rs.CapitalEfficiency +
		weightProbWeighted*probWeighted +
		weightEVPerDollar*evScore

	rs.Explanation = fmt.Sprintf(
		"EV $%.2f/share (POP %.0f%%), ROI %.1f%% (%.0f%% annualized), Kelly %.1f%%, composite %.1f",
		rs.ExpectedValue, pWin*100, rs.ROIPct, rs.AnnualizedROI, rs.KellyFraction*100, rs.Composite)

	cand.RiskScore = rs
	cand.AddDiagnostic(contracts.StageScoring, "risk_adjusted_score", rs.Composite)
	return rs
}

// Comparison is the outcome of comparing two scored trades
type Comparison struct {
	Winner *contracts.Candidate // nil이면 무승부
	Tie    bool
	Reason string
}

// Compare declares a winner only when the composite gap clears the noise
// floor. 무승부에서도 EV가 유의미하게 다르면 사유에 EV 차이를 명시한다.
func (s *Scorer) Compare(a, b *contracts.Candidate) Comparison {
	if a == nil || a.RiskScore == nil || b == nil || b.RiskScore == nil {
		return Comparison{Tie: true, Reason: "comparison unavailable: missing risk scores"}
	}

	gap := a.RiskScore.Composite - b.RiskScore.Composite
	evGap := a.RiskScore.ExpectedValue - b.RiskScore.ExpectedValue
	evMaterial := math.Abs(evGap) > 0.05 // per share

	if math.Abs(gap) > s.config.NoiseFloor {
		winner, loser := a, b
		if gap < 0 {
			winner, loser = b, a
		}
		reason := fmt.Sprintf("composite %.1f vs %.1f exceeds the %.0f-point noise floor",
			winner.RiskScore.Composite, loser.RiskScore.Composite, s.config.NoiseFloor)
		if evMaterial {
			reason += fmt.Sprintf("; expected value differs by $%.2f/share (%.2f vs %.2f)",
				math.Abs(evGap), winner.RiskScore.ExpectedValue, loser.RiskScore.ExpectedValue)
		}
		return Comparison{Winner: winner, Reason: reason}
	}

	if evMaterial {
		winner := a
		if evGap < 0 {
			winner = b
		}
		return Comparison{Winner: winner, Reason: fmt.Sprintf(
			"composite scores within the noise floor (%.1f vs %.1f) but expected value differs by $%.2f/share in favor of this trade",
			a.RiskScore.Composite, b.RiskScore.Composite, math.Abs(evGap))}
	}

	return Comparison{Tie: true, Reason: fmt.Sprintf(
		"composite scores within the noise floor (%.1f vs %.1f); prefer the higher-probability trade",
		a.RiskScore.Composite, b.RiskScore.Composite)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
