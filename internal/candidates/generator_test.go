package candidates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

var asOf = time.Date(2026, 8, 3, 14, 30, 0, 0, time.UTC)

// put builds one put leg with a mid price derived from bid/ask
func put(strike float64, expiry time.Time, delta, bid, ask float64) contracts.ContractLeg {
	return contracts.ContractLeg{
		Symbol:       "SPY",
		Strike:       strike,
		Expiry:       expiry,
		Right:        contracts.RightPut,
		Bid:          bid,
		Ask:          ask,
		Delta:        delta,
		Theta:        -0.05,
		Vega:         0.10,
		IV:           0.22,
		OpenInterest: 1500,
		Volume:       800,
	}
}

// testChain builds a chain with a put ladder at one expiry. 행사가가 높을수록
// |delta|와 프리미엄이 커지도록 구성한다 (OTM put 래더).
func testChain(expiry time.Time) *contracts.OptionChain {
	return &contracts.OptionChain{
		Symbol: "SPY",
		AsOf:   asOf,
		Contracts: []contracts.ContractLeg{
			put(470, expiry, -0.160, 2.60, 2.70),
			put(465, expiry, -0.135, 1.75, 1.85),
			put(460, expiry, -0.125, 1.10, 1.20),
			put(455, expiry, -0.090, 0.75, 0.85),
			put(450, expiry, -0.070, 0.50, 0.60),
			put(445, expiry, -0.050, 0.30, 0.40),
		},
	}
}

func newTestGenerator() *Generator {
	return NewGenerator(DefaultGeneratorConfig(), logger.NewNop())
}

func TestGenerator_ProducesValidSpreads(t *testing.T) {
	g := newTestGenerator()
	expiry := asOf.AddDate(0, 0, 10)

	cands := g.Generate("SPY", testChain(expiry), 480, nil)
	require.NotEmpty(t, cands)

	for _, c := range cands {
		assert.Equal(t, contracts.StrategyPutCreditSpread, c.Strategy)
		assert.Greater(t, c.Width, 0.0)
		assert.Greater(t, c.Credit, 0.0)
		assert.Greater(t, c.Short.Strike, c.Long.Strike, "short leg must be closer to the money")
		assert.Equal(t, contracts.SideSell, c.Short.Side)
		assert.Equal(t, contracts.SideBuy, c.Long.Side)
		assert.GreaterOrEqual(t, c.RiskReward(), g.config.MinRiskReward)
		assert.InDelta(t, 10, c.DTE, 1)
		assert.InDelta(t, c.Short.Strike-c.Credit, c.Breakeven, 1e-9)
	}
}

func TestGenerator_CreditWidthRoundTrip(t *testing.T) {
	g := newTestGenerator()
	expiry := asOf.AddDate(0, 0, 10)

	cands := g.Generate("SPY", testChain(expiry), 480, nil)
	require.NotEmpty(t, cands)

	// credit = width × ratio 재구성이 부동소수 오차 내에서 성립
	for _, c := range cands {
		assert.InDelta(t, c.Credit, c.Width*c.CreditToWidth(), 1e-9)
		assert.InDelta(t, c.MaxLoss, c.Width-c.Credit, 1e-9)
	}
}

func TestGenerator_POPFromShortDelta(t *testing.T) {
	g := newTestGenerator()
	expiry := asOf.AddDate(0, 0, 10)

	cands := g.Generate("SPY", testChain(expiry), 480, nil)
	require.NotEmpty(t, cands)

	for _, c := range cands {
		assert.InDelta(t, 1-absFloat(c.Short.Delta), c.EstPOP, 1e-9)
	}
}

func TestGenerator_POPFallbackWhenDeltaMissing(t *testing.T) {
	g := newTestGenerator()
	expiry := asOf.AddDate(0, 0, 10)

	// 델타가 전부 0 — moneyness 필터로 대체되고 POP은 고정 폴백
	chain := &contracts.OptionChain{
		Symbol: "SPY",
		AsOf:   asOf,
		Contracts: []contracts.ContractLeg{
			put(430, expiry, 0, 3.00, 3.10),
			put(425, expiry, 0, 2.30, 2.40),
			put(420, expiry, 0, 1.75, 1.85),
			put(415, expiry, 0, 0.85, 0.95),
		},
	}

	cands := g.Generate("SPY", chain, 480, nil)
	require.NotEmpty(t, cands, "moneyness fallback should still produce spreads")
	for _, c := range cands {
		assert.InDelta(t, g.config.FallbackPOP, c.EstPOP, 1e-9)
	}
}

func TestGenerator_DeltaBandFromPolicy(t *testing.T) {
	g := newTestGenerator()
	expiry := asOf.AddDate(0, 0, 10)

	threshold := 0.10
	pol := &contracts.Policy{Factors: []contracts.PolicyFactor{
		{Key: "delta", Weight: 1, Threshold: &threshold, Direction: contracts.DirectionLTE, Enabled: true},
	}}

	cands := g.Generate("SPY", testChain(expiry), 480, pol)
	for _, c := range cands {
		assert.LessOrEqual(t, absFloat(c.Short.Delta), 0.10, "short delta must respect the policy cap")
	}
}

func TestGenerator_RejectsNonPositiveCredit(t *testing.T) {
	g := newTestGenerator()
	expiry := asOf.AddDate(0, 0, 10)

	// long (낮은 행사가)이 short보다 비싼 역전 호가 — credit ≤ 0
	chain := &contracts.OptionChain{
		Symbol: "SPY",
		AsOf:   asOf,
		Contracts: []contracts.ContractLeg{
			put(460, expiry, -0.16, 0.40, 0.50),
			put(455, expiry, -0.14, 1.50, 1.60),
		},
	}

	cands := g.Generate("SPY", chain, 480, nil)
	assert.Empty(t, cands, "non-positive credit spreads must be dropped silently")
}

func TestGenerator_LimitsExpirations(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.MaxExpirations = 2
	g := NewGenerator(cfg, logger.NewNop())

	var legs []contracts.ContractLeg
	expiries := []time.Time{
		asOf.AddDate(0, 0, 5),
		asOf.AddDate(0, 0, 12),
		asOf.AddDate(0, 0, 19),
		asOf.AddDate(0, 0, 26),
	}
	for _, exp := range expiries {
		legs = append(legs, testChain(exp).Contracts...)
	}
	chain := &contracts.OptionChain{Symbol: "SPY", AsOf: asOf, Contracts: legs}

	cands := g.Generate("SPY", chain, 480, nil)
	require.NotEmpty(t, cands)

	seen := map[int]bool{}
	for _, c := range cands {
		seen[c.DTE] = true
		assert.LessOrEqual(t, c.DTE, 12, "only the first two expirations should be used")
	}
}

func TestGenerator_NilInputs(t *testing.T) {
	g := newTestGenerator()
	assert.Nil(t, g.Generate("SPY", nil, 480, nil))
	assert.Nil(t, g.Generate("SPY", testChain(asOf.AddDate(0, 0, 10)), 0, nil))
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
