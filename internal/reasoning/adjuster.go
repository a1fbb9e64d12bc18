package reasoning

import (
	"fmt"

	"github.com/wonny/vertex/internal/contracts"
)

// deltaMaxCap bounds how far a relaxed delta threshold may drift
const deltaMaxCap = 0.25

// Adjuster nudges policy thresholds from regime and historical signals.
// 조정은 항상 원본/조정값/사유와 함께 기록된다.
type Adjuster struct{}

// NewAdjuster creates a threshold adjuster
func NewAdjuster() *Adjuster {
	return &Adjuster{}
}

// Adjust clones the policy, applies threshold nudges, and returns the
// adjusted copy with the list of adjustments made. 원본 정책은 불변.
func (a *Adjuster) Adjust(
	policy *contracts.Policy,
	hist *contracts.HistoricalContext,
	market *contracts.MarketFactors,
	earningsRisk bool,
) (*contracts.Policy, []contracts.ThresholdAdjustment) {
	adjusted := policy.Clone()
	var changes []contracts.ThresholdAdjustment

	negativeSentiment := market != nil && market.NewsSentiment == "negative"

	// 델타 한도 조정
	if f := adjusted.Factor("delta"); f != nil && f.HasThreshold() {
		original := *f.Threshold

		switch {
		case negativeSentiment || earningsRisk:
			next := original * 0.75
			*f.Threshold = next
			changes = append(changes, contracts.ThresholdAdjustment{
				FactorKey: "delta",
				Original:  original,
				Adjusted:  next,
				Reason:    "tightened delta cap 25%: negative sentiment or earnings risk",
			})
		case hist != nil && hist.HasData && hist.SuccessRate > 75:
			next := original * 1.15
			if next > deltaMaxCap {
				next = deltaMaxCap
			}
			*f.Threshold = next
			changes = append(changes, contracts.ThresholdAdjustment{
				FactorKey: "delta",
				Original:  original,
				Adjusted:  next,
				Reason:    fmt.Sprintf("relaxed delta cap 15%%: %.0f%% historical win rate", hist.SuccessRate),
			})
		}
	}

	// IV 랭크 요구치 조정
	if f := adjusted.Factor("iv_rank"); f != nil && f.HasThreshold() {
		original := *f.Threshold

		if hist != nil && hist.HasData && hist.SuccessRate > 70 {
			next := original - 10
			if next < 0 {
				next = 0
			}
			*f.Threshold = next
			changes = append(changes, contracts.ThresholdAdjustment{
				FactorKey: "iv_rank",
				Original:  original,
				Adjusted:  next,
				Reason:    fmt.Sprintf("lowered IV rank floor 10pts: %.0f%% historical win rate", hist.SuccessRate),
			})
			original = next
		}

		if market != nil && market.MacroRegime == contracts.RegimeRiskOff {
			next := original + 10
			*f.Threshold = next
			changes = append(changes, contracts.ThresholdAdjustment{
				FactorKey: "iv_rank",
				Original:  original,
				Adjusted:  next,
				Reason:    "raised IV rank floor 10pts: risk-off macro regime",
			})
		}
	}

	return adjusted, changes
}
