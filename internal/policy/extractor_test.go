package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vertex/internal/contracts"
)

func TestRegistry_IVRankIsPerCandidate(t *testing.T) {
	r := NewRegistry()
	feats := &contracts.SymbolFeatures{
		Symbol:      "SPY",
		IVRankChain: ptr(40),
		ChainIVs:    []float64{0.15, 0.17, 0.19, 0.21, 0.23},
	}

	rich := &contracts.Candidate{Symbol: "SPY", Short: contracts.ContractLeg{IV: 0.22}}
	cheap := &contracts.Candidate{Symbol: "SPY", Short: contracts.ContractLeg{IV: 0.16}}

	richRank := r.Resolve("iv_rank", Input{Candidate: rich, Features: feats})
	cheapRank := r.Resolve("iv_rank", Input{Candidate: cheap, Features: feats})

	// 같은 심볼이라도 후보의 short 레그 IV에 따라 랭크가 달라진다
	require.NotNil(t, richRank)
	require.NotNil(t, cheapRank)
	assert.InDelta(t, 80, *richRank, 0.001) // 5개 중 4개가 아래
	assert.InDelta(t, 20, *cheapRank, 0.001)
}

func TestRegistry_IVRankUnresolvedWithoutDistribution(t *testing.T) {
	r := NewRegistry()

	// 체인 IV 분포가 없으면 ATM 랭크로 대체하지 않는다
	cand := &contracts.Candidate{Short: contracts.ContractLeg{IV: 0.22}}
	assert.Nil(t, r.Resolve("iv_rank", Input{
		Candidate: cand,
		Features:  &contracts.SymbolFeatures{IVRankChain: ptr(40)},
	}))

	// short 레그 IV가 무효여도 마찬가지
	assert.Nil(t, r.Resolve("iv_rank", Input{
		Candidate: &contracts.Candidate{},
		Features:  &contracts.SymbolFeatures{ChainIVs: []float64{0.15, 0.20}},
	}))
}
