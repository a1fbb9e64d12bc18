package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

func ptr(v float64) *float64 { return &v }

// spreadCandidate builds a 10-DTE put credit spread with clean liquidity.
// delta/theta/vega는 레그에 배분해 순포지션 그릭스가 의도값이 되게 한다.
func spreadCandidate(delta, creditToWidth, netTheta, netVega float64) *contracts.Candidate {
	width := 5.0
	credit := width * creditToWidth
	return &contracts.Candidate{
		Symbol:          "SPY",
		Strategy:        contracts.StrategyPutCreditSpread,
		DTE:             10,
		UnderlyingPrice: 480,
		Width:           width,
		Credit:          credit,
		MaxProfit:       credit,
		MaxLoss:         width - credit,
		EstPOP:          1 - delta,
		Short: contracts.ContractLeg{
			Strike: 465, Bid: 2.00, Ask: 2.10,
			Delta: -delta, Theta: -netTheta, Vega: 0.10,
			OpenInterest: 1500,
		},
		Long: contracts.ContractLeg{
			Strike: 460, Bid: 1.00, Ask: 1.08,
			Delta: -delta * 0.7, Theta: 0, Vega: 0.10 + netVega,
			OpenInterest: 1200,
		},
		Guardrails: map[string]bool{},
	}
}

func featuresWithIVRank(rank float64) *contracts.SymbolFeatures {
	return &contracts.SymbolFeatures{
		Symbol:      "SPY",
		IVRankChain: ptr(rank),
		Momentum5D:  ptr(1.5),
		NewsZScore:  ptr(0.3),
	}
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator(DefaultEvaluatorConfig(), logger.NewNop())
}

// delta=0.13, DTE=10, credit/width=0.30, theta=1.2, vega=-0.1, 유동성
// 정상, IV rank=55 → 게이트 PASS, 결론 TAKE
func TestEvaluator_CleanSpreadTakes(t *testing.T) {
	e := newTestEvaluator()
	cand := spreadCandidate(0.13, 0.30, 1.2, -0.1)

	ev := e.Evaluate(cand, featuresWithIVRank(55))
	require.NotNil(t, ev)

	assert.Equal(t, contracts.GatePass, ev.HardGates)
	assert.Equal(t, contracts.DecisionTake, ev.Decision)
	assert.True(t, ev.Theta.Pass)
	assert.True(t, ev.Vega.Pass)
	assert.True(t, ev.Delta.Pass)
	assert.True(t, ev.Liquidity.Pass)
	assert.Greater(t, ev.Score, 50.0)
}

// 동일 조건에서 vega만 +0.05 → 게이트 FAIL, 결론은 절대 TAKE가 아니다
func TestEvaluator_PositiveVegaNeverTakes(t *testing.T) {
	e := newTestEvaluator()
	cand := spreadCandidate(0.13, 0.30, 1.2, +0.05)

	ev := e.Evaluate(cand, featuresWithIVRank(55))
	require.NotNil(t, ev)

	assert.Equal(t, contracts.GateFail, ev.HardGates)
	assert.Equal(t, contracts.DecisionPass, ev.Decision)
	assert.False(t, ev.Vega.Pass)
}

// 속성: vega가 양수면 다른 팩터와 무관하게 게이트는 항상 FAIL
func TestEvaluator_PositiveVegaAlwaysFailsGates(t *testing.T) {
	e := newTestEvaluator()

	for _, tc := range []struct {
		delta, cw, theta float64
		ivRank           float64
	}{
		{0.05, 0.45, 3.0, 90},
		{0.13, 0.30, 1.2, 55},
		{0.17, 0.26, 1.0, 35},
	} {
		cand := spreadCandidate(tc.delta, tc.cw, tc.theta, +0.01)
		ev := e.Evaluate(cand, featuresWithIVRank(tc.ivRank))
		require.NotNil(t, ev)
		assert.Equal(t, contracts.GateFail, ev.HardGates, "case %+v", tc)
		assert.NotEqual(t, contracts.DecisionTake, ev.Decision, "case %+v", tc)
	}
}

func TestEvaluator_StrictDeltaCapWhenIVRankLow(t *testing.T) {
	e := newTestEvaluator()

	// IV rank 20 (critical 미만) → 캡 0.12: delta 0.13은 탈락
	cand := spreadCandidate(0.13, 0.30, 1.2, -0.1)
	ev := e.Evaluate(cand, featuresWithIVRank(20))
	require.NotNil(t, ev)
	assert.False(t, ev.Delta.Pass)
	assert.Equal(t, contracts.GateFail, ev.HardGates)

	// 같은 delta라도 IV rank 55에서는 느슨한 캡 0.18로 통과
	cand = spreadCandidate(0.13, 0.30, 1.2, -0.1)
	ev = e.Evaluate(cand, featuresWithIVRank(55))
	require.NotNil(t, ev)
	assert.True(t, ev.Delta.Pass)
}

func TestEvaluator_CautionBandDowngradesToTweak(t *testing.T) {
	e := newTestEvaluator()

	// IV rank 35 (caution band), 보상 조건 미충족: 모멘텀 음수 + 빠듯한
	// credit/width + delta 0.11 (> 0.12×0.85)
	cand := spreadCandidate(0.11, 0.26, 1.2, -0.1)
	feats := &contracts.SymbolFeatures{
		Symbol:      "SPY",
		IVRankChain: ptr(35),
		Momentum5D:  ptr(-0.8),
		NewsZScore:  ptr(1.4),
	}

	ev := e.Evaluate(cand, feats)
	require.NotNil(t, ev)

	assert.Equal(t, contracts.GatePass, ev.HardGates, "caution band is not a hard-gate failure")
	assert.Equal(t, contracts.DecisionTweak, ev.Decision)
	assert.NotEmpty(t, ev.Suggestions, "TWEAK must carry actionable fix suggestions")
}

func TestEvaluator_CautionBandTakesWithCompensation(t *testing.T) {
	e := newTestEvaluator()

	// caution band지만 보상 조건 전부 충족: 강한 credit/width, 양의
	// 모멘텀, 조용한 뉴스, 타이트한 delta
	cand := spreadCandidate(0.08, 0.32, 1.4, -0.1)
	feats := &contracts.SymbolFeatures{
		Symbol:      "SPY",
		IVRankChain: ptr(35),
		Momentum5D:  ptr(2.0),
		NewsZScore:  ptr(0.2),
	}

	ev := e.Evaluate(cand, feats)
	require.NotNil(t, ev)
	assert.Equal(t, contracts.DecisionTake, ev.Decision)
	assert.Empty(t, ev.Suggestions)
}

func TestEvaluator_NewsSpikeFailsGates(t *testing.T) {
	e := newTestEvaluator()
	cand := spreadCandidate(0.13, 0.30, 1.2, -0.1)
	feats := featuresWithIVRank(55)
	feats.NewsZScore = ptr(2.7)

	ev := e.Evaluate(cand, feats)
	require.NotNil(t, ev)
	assert.False(t, ev.NewsZ.Pass)
	assert.Equal(t, contracts.GateFail, ev.HardGates)
}

func TestEvaluator_IlliquidLegsFailGates(t *testing.T) {
	e := newTestEvaluator()
	cand := spreadCandidate(0.13, 0.30, 1.2, -0.1)
	cand.Long.OpenInterest = 40 // OI 최소치 미달

	ev := e.Evaluate(cand, featuresWithIVRank(55))
	require.NotNil(t, ev)
	assert.False(t, ev.Liquidity.Pass)
	assert.Equal(t, contracts.GateFail, ev.HardGates)
}

func TestEvaluator_RequiresKnownPrice(t *testing.T) {
	e := newTestEvaluator()
	cand := spreadCandidate(0.13, 0.30, 1.2, -0.1)
	cand.UnderlyingPrice = 0

	assert.Nil(t, e.Evaluate(cand, featuresWithIVRank(55)))
	assert.Nil(t, e.Evaluate(nil, nil))
}
