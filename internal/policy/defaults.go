package policy

import "github.com/wonny/vertex/internal/contracts"

func ptr(v float64) *float64 { return &v }

// DefaultFactors returns the unweighted fallback policy used when the
// configured policy cannot be loaded. ⭐ SSOT: 폴백 정책의 유일한 정의.
// 다른 정책을 몰래 대입하지 않는다 — Fallback=true로 명시 표기.
func DefaultFactors() *contracts.Policy {
	return &contracts.Policy{
		ID:       "default",
		Name:     "Default (unweighted fallback)",
		Fallback: true,
		Factors: []contracts.PolicyFactor{
			{Key: "delta", DisplayName: "Short Delta", Weight: 1, Threshold: ptr(0.18), Direction: contracts.DirectionLTE, Enabled: true},
			{Key: "credit_to_width", DisplayName: "Credit / Width", Weight: 1, Threshold: ptr(0.25), Direction: contracts.DirectionGTE, Enabled: true},
			{Key: "open_interest", DisplayName: "Open Interest", Weight: 1, Threshold: ptr(500), Direction: contracts.DirectionGTE, Enabled: true},
			{Key: "bid_ask_spread_pct", DisplayName: "Bid/Ask Spread %", Weight: 1, Threshold: ptr(0.5), Direction: contracts.DirectionLTE, Enabled: true},
			{Key: "iv_rank", DisplayName: "IV Rank", Weight: 1, Threshold: ptr(30), ThresholdMax: ptr(80), Direction: contracts.DirectionRange, Enabled: true},
			{Key: "pop", DisplayName: "Probability of Profit", Weight: 1, Threshold: ptr(0.75), Direction: contracts.DirectionGTE, Enabled: true},
		},
	}
}
