package contracts

// GateResult is the overall hard-gate outcome
type GateResult string

const (
	GatePass GateResult = "PASS"
	GateFail GateResult = "FAIL"
)

// Decision is the bottom-line call of the evaluator
type Decision string

const (
	DecisionTake  Decision = "TAKE"
	DecisionPass  Decision = "PASS"
	DecisionTweak Decision = "TWEAK"
)

// FactorCheck is one sub-check of the hard-gate evaluator
type FactorCheck struct {
	Value  float64 `json:"value"`
	Pass   bool    `json:"pass"`
	Target string  `json:"target"`
}

// Evaluation is the credit-spread specific hard-gate and composite result.
// 하드 게이트 FAIL이면 Selector가 종합 점수를 40으로 캡한다.
type Evaluation struct {
	CreditToWidth FactorCheck `json:"credit_to_width"`
	ReturnOnRisk  FactorCheck `json:"return_on_risk"`
	Theta         FactorCheck `json:"theta"`
	Vega          FactorCheck `json:"vega"`
	Delta         FactorCheck `json:"delta"`
	IVRank        FactorCheck `json:"iv_rank"`
	Momentum      FactorCheck `json:"momentum"`
	NewsZ         FactorCheck `json:"news_z"`
	Liquidity     FactorCheck `json:"liquidity"`

	HardGates   GateResult `json:"hard_gates"`
	Decision    Decision   `json:"decision"`
	Score       float64    `json:"score"` // 0–100
	Suggestions []string   `json:"suggestions,omitempty"`
}

// RiskAdjustedScore is the policy-independent probabilistic score
type RiskAdjustedScore struct {
	ExpectedValue     float64 `json:"expected_value"` // per share
	EVPerDollar       float64 `json:"ev_per_dollar"`  // EV per dollar at risk
	ROIPct            float64 `json:"roi_pct"`
	AnnualizedROI     float64 `json:"annualized_roi"`
	CapitalEfficiency float64 `json:"capital_efficiency"` // 0–100
	ProbWeightedROI   float64 `json:"prob_weighted_roi"`
	SharpeLike        float64 `json:"sharpe_like"`
	KellyFraction     float64 `json:"kelly_fraction"`
	RuinAdjustedROI   float64 `json:"ruin_adjusted_roi"`
	Composite         float64 `json:"composite"` // 0–100
	Explanation       string  `json:"explanation"`
}
