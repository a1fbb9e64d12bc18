package policy

import (
	"fmt"
	"math"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

// Scorer evaluates candidates against a weighted, thresholded policy
type Scorer struct {
	registry *Registry
	logger   *logger.Logger
}

// NewScorer creates a compliance scorer
func NewScorer(registry *Registry, log *logger.Logger) *Scorer {
	return &Scorer{registry: registry, logger: log}
}

// Score computes the 0–100 policy-fit score with per-factor detail.
// 값을 확보하지 못한 팩터는 분자/분모 모두에서 제외하고 MissingWeight로
// 집계한다 — 추측값 대입 금지. 모든 팩터가 미확보면 점수는 0 (NaN 아님).
func (s *Scorer) Score(policy *contracts.Policy, in Input) *contracts.ComplianceResult {
	result := &contracts.ComplianceResult{Fallback: policy.Fallback}

	var weightedSum, weightTotal float64

	for _, f := range policy.Enabled() {
		value := s.registry.Resolve(f.Key, in)

		fs := contracts.FactorScore{
			Key:    f.Key,
			Name:   f.DisplayName,
			Weight: f.Weight,
			Value:  value,
			Target: targetLabel(f),
		}

		if value == nil {
			result.MissingWeight += f.Weight
			fs.Score = 0
			result.Factors = append(result.Factors, fs)
			continue
		}

		if !f.HasThreshold() {
			// 임계값 없는 팩터: 중립 점수, pass/fail 집계 제외
			fs.Score = 50
			weightedSum += 50 * f.Weight
			weightTotal += f.Weight
			result.Factors = append(result.Factors, fs)
			continue
		}

		score, pass := scoreFactor(f, *value)
		fs.Score = score
		fs.Pass = &pass

		if pass {
			result.Passes = append(result.Passes, f.Key)
		} else {
			result.Violations = append(result.Violations,
				fmt.Sprintf("%s: %.4g (target %s)", f.Key, *value, fs.Target))
		}

		weightedSum += score * f.Weight
		weightTotal += f.Weight
		result.Factors = append(result.Factors, fs)
	}

	if weightTotal > 0 {
		result.Score = clamp(weightedSum/weightTotal, 0, 100)
	}
	return result
}

// scoreFactor applies the direction-specific scoring curve
func scoreFactor(f contracts.PolicyFactor, value float64) (score float64, pass bool) {
	t := *f.Threshold

	switch f.Direction {
	case contracts.DirectionGTE:
		return scoreGTE(value, t)
	case contracts.DirectionLTE:
		return scoreLTE(value, t)
	case contracts.DirectionRange:
		if f.ThresholdMax == nil {
			// Validate()가 걸렀어야 하지만 방어적으로 gte 취급
			return scoreGTE(value, t)
		}
		return scoreRange(value, t, *f.ThresholdMax)
	case contracts.DirectionEQ:
		return scoreEQ(value, t)
	default:
		return 50, false
	}
}

// scoreGTE: 충족 시 70–100 (초과분 비례), 미달 시 0–70 (value/threshold 비례).
// v=t에서 70으로 연속 — 값 증가에 대해 단조 비감소.
func scoreGTE(value, threshold float64) (float64, bool) {
	if threshold == 0 {
		if value >= 0 {
			return 100, true
		}
		return 0, false
	}
	if value >= threshold {
		excess := (value - threshold) / math.Abs(threshold)
		return clamp(70+30*math.Min(1, excess), 0, 100), true
	}
	return clamp(70*value/threshold, 0, 70), false
}

// scoreLTE mirrors scoreGTE: 값 감소에 대해 단조 비감소
func scoreLTE(value, threshold float64) (float64, bool) {
	if threshold == 0 {
		if value <= 0 {
			return 100, true
		}
		return 0, false
	}
	if value <= threshold {
		margin := (threshold - value) / math.Abs(threshold)
		return clamp(70+30*math.Min(1, margin), 0, 100), true
	}
	// 초과분이 임계값만큼 커지면 0
	overshoot := (value - threshold) / math.Abs(threshold)
	return clamp(70*(1-overshoot), 0, 70), false
}

// scoreRange: 구간 내 70–100 (중앙에서 100), 구간 밖 70에서 거리 비례 감쇠
func scoreRange(value, lo, hi float64) (float64, bool) {
	if hi <= lo {
		return scoreGTE(value, lo)
	}
	mid := (lo + hi) / 2
	half := (hi - lo) / 2

	if value >= lo && value <= hi {
		dist := math.Abs(value-mid) / half // 0 at mid, 1 at bounds
		return 100 - 30*dist, true
	}

	var outside float64
	if value < lo {
		outside = (lo - value) / half
	} else {
		outside = (value - hi) / half
	}
	return clamp(70-35*outside, 0, 70), false
}

// scoreEQ: 상대 오차 밴딩
func scoreEQ(value, target float64) (float64, bool) {
	if target == 0 {
		if value == 0 {
			return 100, true
		}
		return 0, false
	}
	relErr := math.Abs(value-target) / math.Abs(target)
	switch {
	case relErr <= 0.05:
		return 100, true
	case relErr <= 0.10:
		return 90, true
	case relErr <= 0.20:
		return 75, false
	case relErr <= 0.50:
		return 50 * (1 - (relErr-0.20)/0.30*0.5), false // 50 → 25
	default:
		return clamp(25*(1-(relErr-0.50)), 0, 25), false
	}
}

func targetLabel(f contracts.PolicyFactor) string {
	if !f.HasThreshold() {
		return "—"
	}
	switch f.Direction {
	case contracts.DirectionGTE:
		return fmt.Sprintf(">= %.4g", *f.Threshold)
	case contracts.DirectionLTE:
		return fmt.Sprintf("<= %.4g", *f.Threshold)
	case contracts.DirectionRange:
		if f.ThresholdMax != nil {
			return fmt.Sprintf("%.4g–%.4g", *f.Threshold, *f.ThresholdMax)
		}
		return fmt.Sprintf(">= %.4g", *f.Threshold)
	case contracts.DirectionEQ:
		return fmt.Sprintf("≈ %.4g", *f.Threshold)
	default:
		return fmt.Sprintf("%.4g", *f.Threshold)
	}
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
