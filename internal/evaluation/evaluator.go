package evaluation

import (
	"fmt"
	"math"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

// DTEBucket carries the per-horizon minimums
type DTEBucket struct {
	MaxDTE           int
	MinCreditToWidth float64
	MinReturnOnRisk  float64
	MinThetaPerDay   float64
}

// EvaluatorConfig controls the hard-gate evaluator
type EvaluatorConfig struct {
	Buckets []DTEBucket // MaxDTE 오름차순; 마지막 버킷이 그 이상을 모두 받는다

	DeltaCapStrict  float64 // IV 랭크가 critical 미만일 때
	DeltaCapLoose   float64
	IVRankCritical  float64
	IVCautionLow    float64 // caution band 하한 (= critical)
	IVCautionHigh   float64
	NewsZHardFail   float64
	MaxSpreadPct    float64 // 레그당 bid/ask 스프레드 한도 (% of strike)
	MinOpenInterest int64
}

// DefaultEvaluatorConfig returns production defaults for short-duration
// income trades.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Buckets: []DTEBucket{
			{MaxDTE: 7, MinCreditToWidth: 0.30, MinReturnOnRisk: 0.40, MinThetaPerDay: 1.5},
			{MaxDTE: 14, MinCreditToWidth: 0.25, MinReturnOnRisk: 0.30, MinThetaPerDay: 1.0},
		},
		DeltaCapStrict:  0.12,
		DeltaCapLoose:   0.18,
		IVRankCritical:  30,
		IVCautionLow:    30,
		IVCautionHigh:   40,
		NewsZHardFail:   2.0,
		MaxSpreadPct:    0.5,
		MinOpenInterest: 500,
	}
}

// Scoring weights per sub-check (sums to 100)
var checkWeights = map[string]float64{
	"credit_to_width": 20,
	"return_on_risk":  10,
	"theta":           15,
	"vega":            10,
	"delta":           15,
	"iv_rank":         10,
	"momentum":        5,
	"news_z":          5,
	"liquidity":       10,
}

// Evaluator applies DTE-bucketed hard gates and a composite quality score
// to credit-spread candidates. ⭐ SSOT: TAKE/PASS/TWEAK 판정은 여기서만.
type Evaluator struct {
	config EvaluatorConfig
	logger *logger.Logger
}

// NewEvaluator creates a hard-gate evaluator
func NewEvaluator(cfg EvaluatorConfig, log *logger.Logger) *Evaluator {
	return &Evaluator{config: cfg, logger: log}
}

// Evaluate runs hard gates and the composite score for one candidate.
// 현재가를 모르면 평가 불가 — nil 반환.
func (e *Evaluator) Evaluate(cand *contracts.Candidate, feats *contracts.SymbolFeatures) *contracts.Evaluation {
	if cand == nil || cand.UnderlyingPrice <= 0 || cand.Strategy != contracts.StrategyPutCreditSpread {
		return nil
	}

	bucket := e.bucketFor(cand.DTE)
	ev := &contracts.Evaluation{}

	// 포지션 그릭스: short 매도, long 매수
	netTheta := -cand.Short.Theta + cand.Long.Theta // put theta는 보통 음수 → 매도 포지션은 양수 기대
	netVega := -cand.Short.Vega + cand.Long.Vega
	absDelta := math.Abs(cand.Short.Delta)

	cw := cand.CreditToWidth()
	ev.CreditToWidth = contracts.FactorCheck{
		Value:  cw,
		Pass:   cw >= bucket.MinCreditToWidth,
		Target: fmt.Sprintf(">= %.2f", bucket.MinCreditToWidth),
	}

	ror := cand.RiskReward()
	ev.ReturnOnRisk = contracts.FactorCheck{
		Value:  ror,
		Pass:   ror >= bucket.MinReturnOnRisk,
		Target: fmt.Sprintf(">= %.2f", bucket.MinReturnOnRisk),
	}

	ev.Theta = contracts.FactorCheck{
		Value:  netTheta,
		Pass:   netTheta >= bucket.MinThetaPerDay,
		Target: fmt.Sprintf(">= %.2f/day", bucket.MinThetaPerDay),
	}

	ev.Vega = contracts.FactorCheck{
		Value:  netVega,
		Pass:   netVega <= 0,
		Target: "<= 0 (net short vega)",
	}

	// 델타 캡은 IV 랭크에 따라 달라진다. IV 랭크 미확보 시 엄격한 캡.
	ivRank, hasIVRank := ivRankOf(feats)
	deltaCap := e.config.DeltaCapStrict
	if hasIVRank && ivRank >= e.config.IVRankCritical {
		deltaCap = e.config.DeltaCapLoose
	}
	ev.Delta = contracts.FactorCheck{
		Value:  absDelta,
		Pass:   absDelta <= deltaCap,
		Target: fmt.Sprintf("|delta| <= %.2f", deltaCap),
	}

	ev.IVRank = contracts.FactorCheck{
		Value:  ivRank,
		Pass:   hasIVRank && ivRank >= e.config.IVCautionHigh,
		Target: fmt.Sprintf(">= %.0f preferred", e.config.IVCautionHigh),
	}

	momentum := 0.0
	momentumKnown := feats != nil && feats.Momentum5D != nil
	if momentumKnown {
		momentum = *feats.Momentum5D
	}
	ev.Momentum = contracts.FactorCheck{
		Value:  momentum,
		Pass:   momentumKnown && momentum > 0,
		Target: "> 0 (5-day)",
	}

	// 뉴스 z-score 미확보는 게이트 통과 (미확인 ≠ 위험)
	newsZ := 0.0
	newsZKnown := feats != nil && feats.NewsZScore != nil
	if newsZKnown {
		newsZ = *feats.NewsZScore
	}
	ev.NewsZ = contracts.FactorCheck{
		Value:  newsZ,
		Pass:   !newsZKnown || newsZ <= e.config.NewsZHardFail,
		Target: fmt.Sprintf("<= %.1f", e.config.NewsZHardFail),
	}

	ev.Liquidity = e.checkLiquidity(cand)

	// 하드 게이트: theta, vega, delta, news z, liquidity의 AND
	if ev.Theta.Pass && ev.Vega.Pass && ev.Delta.Pass && ev.NewsZ.Pass && ev.Liquidity.Pass {
		ev.HardGates = contracts.GatePass
	} else {
		ev.HardGates = contracts.GateFail
	}

	ev.Score = e.score(ev)
	ev.Decision, ev.Suggestions = e.decide(ev, bucket, ivRank, hasIVRank, absDelta, cw, newsZ, newsZKnown, momentumKnown, momentum)

	cand.Evaluation = ev
	cand.AddDiagnostic(contracts.StageScoring, "hard_gate_evaluation", map[string]interface{}{
		"hard_gates": ev.HardGates,
		"decision":   ev.Decision,
		"score":      ev.Score,
	})
	return ev
}

// bucketFor resolves the DTE bucket; DTE beyond the last bound falls
// through to the last bucket.
func (e *Evaluator) bucketFor(dte int) DTEBucket {
	for _, b := range e.config.Buckets {
		if dte <= b.MaxDTE {
			return b
		}
	}
	return e.config.Buckets[len(e.config.Buckets)-1]
}

func (e *Evaluator) checkLiquidity(cand *contracts.Candidate) contracts.FactorCheck {
	worstSpread := 0.0
	pass := true
	for _, leg := range []contracts.ContractLeg{cand.Short, cand.Long} {
		if leg.OpenInterest < e.config.MinOpenInterest {
			pass = false
		}
		if leg.Ask <= 0 {
			pass = false // 호가 없음
			continue
		}
		sp := leg.SpreadPct()
		if sp > worstSpread {
			worstSpread = sp
		}
		if sp > e.config.MaxSpreadPct {
			pass = false
		}
	}
	return contracts.FactorCheck{
		Value:  worstSpread,
		Pass:   pass,
		Target: fmt.Sprintf("spread <= %.1f%% of strike, OI >= %d per leg", e.config.MaxSpreadPct, e.config.MinOpenInterest),
	}
}

// score sums the weights of passing sub-checks
func (e *Evaluator) score(ev *contracts.Evaluation) float64 {
	total := 0.0
	for name, check := range map[string]contracts.FactorCheck{
		"credit_to_width": ev.CreditToWidth,
		"return_on_risk":  ev.ReturnOnRisk,
		"theta":           ev.Theta,
		"vega":            ev.Vega,
		"delta":           ev.Delta,
		"iv_rank":         ev.IVRank,
		"momentum":        ev.Momentum,
		"news_z":          ev.NewsZ,
		"liquidity":       ev.Liquidity,
	} {
		if check.Pass {
			total += checkWeights[name]
		}
	}
	return total
}

// decide derives the bottom line. 게이트 FAIL이면 절대 TAKE가 아니다.
// IV caution band에서는 보상 조건 미충족 시 TAKE를 TWEAK로 강등하고
// 실행 가능한 수정 제안을 붙인다.
func (e *Evaluator) decide(
	ev *contracts.Evaluation,
	bucket DTEBucket,
	ivRank float64, hasIVRank bool,
	absDelta, cw, newsZ float64, newsZKnown, momentumKnown bool, momentum float64,
) (contracts.Decision, []string) {
	if ev.HardGates == contracts.GateFail {
		return contracts.DecisionPass, nil
	}

	inCaution := hasIVRank && ivRank >= e.config.IVCautionLow && ivRank < e.config.IVCautionHigh
	if !inCaution {
		return contracts.DecisionTake, nil
	}

	// caution band 보상 조건
	var suggestions []string
	if !(momentumKnown && momentum > 0) {
		suggestions = append(suggestions, "wait for positive 5-day momentum before entry")
	}
	if cw < bucket.MinCreditToWidth*1.2 {
		suggestions = append(suggestions, "move short strike closer to ATM to lift credit/width above the caution premium")
	}
	if newsZKnown && newsZ > 1.0 {
		suggestions = append(suggestions, "wait for news volume to settle (z-score above 1.0)")
	}
	if absDelta > e.config.DeltaCapStrict*0.85 {
		suggestions = append(suggestions, fmt.Sprintf("tighten short delta below %.2f while IV rank is in the caution band", e.config.DeltaCapStrict*0.85))
	}

	if len(suggestions) == 0 {
		return contracts.DecisionTake, nil
	}
	return contracts.DecisionTweak, suggestions
}

func ivRankOf(feats *contracts.SymbolFeatures) (float64, bool) {
	if feats == nil || feats.IVRankChain == nil {
		return 0, false
	}
	return *feats.IVRankChain, true
}
