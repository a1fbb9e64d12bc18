package selection

import (
	"fmt"
	"sort"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

// Selection groups
const (
	GroupPerfect   = "perfect"
	GroupComposite = "composite"
)

// SelectorConfig controls final ranking
type SelectorConfig struct {
	TopK             int
	PerfectFitFloor  float64 // 이상이면 perfect 버킷
	GateFailScoreCap float64 // 하드 게이트 FAIL 시 종합 점수 상한
	MissingPenalty   float64 // 누락 가중치 1.0당 감점
}

// DefaultSelectorConfig returns production defaults
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		TopK:             10,
		PerfectFitFloor:  99.9,
		GateFailScoreCap: 40,
		MissingPenalty:   10,
	}
}

// Selector merges all scores and emits the final ranked shortlist.
// ⭐ SSOT: 최종 순위 산정은 여기서만. perfect 버킷은 항상 composite
// 버킷보다 위에 온다.
type Selector struct {
	config SelectorConfig
	logger *logger.Logger
}

// NewSelector creates a selector
func NewSelector(cfg SelectorConfig, log *logger.Logger) *Selector {
	return &Selector{config: cfg, logger: log}
}

// Select ranks the candidates and returns the top K, each annotated with
// group, rank, blended score, reason, and top failing factors.
func (s *Selector) Select(cands []*contracts.Candidate) []*contracts.Candidate {
	if len(cands) == 0 {
		return nil
	}

	var perfect, composite []*contracts.Candidate
	maxRR := 0.0
	for _, c := range cands {
		if rr := c.RiskReward(); rr > maxRR {
			maxRR = rr
		}
	}

	for _, c := range cands {
		if fitScore(c) >= s.config.PerfectFitFloor {
			perfect = append(perfect, c)
		} else {
			composite = append(composite, c)
		}
	}

	// perfect 버킷: 리스크/리워드 → 절대 max profit
	sort.SliceStable(perfect, func(i, j int) bool {
		if perfect[i].RiskReward() != perfect[j].RiskReward() {
			return perfect[i].RiskReward() > perfect[j].RiskReward()
		}
		return perfect[i].MaxProfit > perfect[j].MaxProfit
	})

	// composite 버킷: 블렌드 점수 → 정책 적합도 → 리스크/리워드 → max profit
	blend := make(map[*contracts.Candidate]float64, len(composite))
	for _, c := range composite {
		blend[c] = s.blendedScore(c, maxRR)
	}
	sort.SliceStable(composite, func(i, j int) bool {
		a, b := composite[i], composite[j]
		if blend[a] != blend[b] {
			return blend[a] > blend[b]
		}
		if fitScore(a) != fitScore(b) {
			return fitScore(a) > fitScore(b)
		}
		if a.RiskReward() != b.RiskReward() {
			return a.RiskReward() > b.RiskReward()
		}
		return a.MaxProfit > b.MaxProfit
	})

	merged := append(perfect, composite...)
	if len(merged) > s.config.TopK {
		merged = merged[:s.config.TopK]
	}

	for rank, c := range merged {
		group := GroupComposite
		score := blend[c]
		if fitScore(c) >= s.config.PerfectFitFloor {
			group = GroupPerfect
			score = fitScore(c)
		}
		c.Selection = &contracts.SelectionInfo{
			Group:          group,
			Rank:           rank + 1,
			BlendedScore:   score,
			Reason:         s.reason(c, group, rank+1),
			FailingFactors: topFailingFactors(c, 2),
		}
		c.AddDiagnostic(contracts.StageSelection, "selection", map[string]interface{}{
			"group": group,
			"rank":  rank + 1,
			"score": score,
		})
	}

	s.logger.WithFields(map[string]interface{}{
		"total":    len(cands),
		"perfect":  len(perfect),
		"selected": len(merged),
	}).Info("Selected final candidates")

	return merged
}

// blendedScore is 0.7×policy fit + 0.3×normalized risk/reward − missing
// weight penalty; 하드 게이트 FAIL이면 상한 캡 적용.
func (s *Selector) blendedScore(c *contracts.Candidate, maxRR float64) float64 {
	normRR := 0.0
	if maxRR > 0 {
		normRR = c.RiskReward() / maxRR * 100
	}

	score := 0.7*fitScore(c) + 0.3*normRR
	if c.Compliance != nil {
		score -= s.config.MissingPenalty * c.Compliance.MissingWeight
	}
	if score < 0 {
		score = 0
	}

	if c.Evaluation != nil && c.Evaluation.HardGates == contracts.GateFail && score > s.config.GateFailScoreCap {
		score = s.config.GateFailScoreCap
	}
	return score
}

func (s *Selector) reason(c *contracts.Candidate, group string, rank int) string {
	switch group {
	case GroupPerfect:
		return fmt.Sprintf("rank %d: fully policy-compliant (fit %.1f), ordered by risk/reward %.2f",
			rank, fitScore(c), c.RiskReward())
	default:
		detail := fmt.Sprintf("rank %d: policy fit %.1f, risk/reward %.2f", rank, fitScore(c), c.RiskReward())
		if c.Evaluation != nil && c.Evaluation.HardGates == contracts.GateFail {
			detail += " (score capped: hard gate failure)"
		}
		if c.Compliance != nil && c.Compliance.MissingWeight > 0 {
			detail += fmt.Sprintf(", %.2f factor weight unresolved", c.Compliance.MissingWeight)
		}
		return detail
	}
}

// topFailingFactors returns up to n failing factor keys ordered by weight
func topFailingFactors(c *contracts.Candidate, n int) []string {
	if c.Compliance == nil {
		return nil
	}
	var failing []contracts.FactorScore
	for _, f := range c.Compliance.Factors {
		if f.Pass != nil && !*f.Pass {
			failing = append(failing, f)
		}
	}
	sort.SliceStable(failing, func(i, j int) bool { return failing[i].Weight > failing[j].Weight })
	if len(failing) > n {
		failing = failing[:n]
	}
	out := make([]string, len(failing))
	for i, f := range failing {
		out[i] = f.Key
	}
	return out
}

// fitScore returns the candidate's policy-fit score, preferring the
// adjusted reasoning score's compliance re-score when present.
func fitScore(c *contracts.Candidate) float64 {
	if c.Compliance != nil {
		return c.Compliance.Score
	}
	return 0
}
