package candidates

import (
	"math"
	"sort"
	"time"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

// GeneratorConfig controls spread enumeration
type GeneratorConfig struct {
	MaxExpirations      int     // 탐색할 만기 수 (가까운 순)
	MaxSpreadsPerExpiry int     // 만기당 최대 스프레드 수
	SpreadOffsets       []int   // short 행사가 대비 long 행사가 인덱스 오프셋
	DeltaSanityFloor    float64 // |delta|가 이 값 미만이면 moneyness로 대체
	DefaultDeltaMax     float64 // 정책에 델타 한도가 없을 때
	MinRiskReward       float64 // maxProfit/maxLoss 하한
	FallbackPOP         float64 // short delta 없을 때 POP
}

// DefaultGeneratorConfig returns production defaults
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxExpirations:      3,
		MaxSpreadsPerExpiry: 4,
		SpreadOffsets:       []int{1, 2},
		DeltaSanityFloor:    0.01,
		DefaultDeltaMax:     0.18,
		MinRiskReward:       0.15,
		FallbackPOP:         0.7,
	}
}

// Generator enumerates put-credit-spread candidates from an option chain
// ⭐ SSOT: 후보 생성은 여기서만. 이후 스테이지는 Candidate를 변형만 한다.
type Generator struct {
	config GeneratorConfig
	logger *logger.Logger
}

// NewGenerator creates a candidate generator
func NewGenerator(cfg GeneratorConfig, log *logger.Logger) *Generator {
	return &Generator{config: cfg, logger: log}
}

// Generate builds validated put-credit-spread candidates for one symbol.
// 구조적으로 무효한 후보(width≤0, credit≤0, RR 미달)는 조용히 버린다 —
// 에러가 아니라 필터.
func (g *Generator) Generate(symbol string, chain *contracts.OptionChain, price float64, policy *contracts.Policy) []*contracts.Candidate {
	if chain == nil || price <= 0 {
		return nil
	}

	puts := chain.Puts()
	if len(puts) == 0 {
		return nil
	}

	deltaMin, deltaMax := g.deltaBand(policy)

	byExpiry := groupByExpiry(puts)
	expiries := sortedExpiries(byExpiry)
	if len(expiries) > g.config.MaxExpirations {
		expiries = expiries[:g.config.MaxExpirations]
	}

	var out []*contracts.Candidate
	for _, expiry := range expiries {
		legs := g.filterAndSort(byExpiry[expiry], price, deltaMin, deltaMax)
		spreads := g.buildSpreads(symbol, legs, expiry, price, chain.AsOf)
		out = append(out, spreads...)
	}

	g.logger.WithFields(map[string]interface{}{
		"symbol":     symbol,
		"candidates": len(out),
		"expiries":   len(expiries),
	}).Info("Generated spread candidates")

	return out
}

// deltaBand derives the short-leg delta window from the policy's delta
// threshold: max = |threshold|, min = max * 0.67.
func (g *Generator) deltaBand(policy *contracts.Policy) (float64, float64) {
	max := g.config.DefaultDeltaMax
	if policy != nil {
		if f := policy.Factor("delta"); f != nil && f.HasThreshold() {
			max = math.Abs(*f.Threshold)
		}
	}
	return max * 0.67, max
}

// filterAndSort keeps legs inside the delta band (or a moneyness band when
// deltas are unreliable) and sorts them by distance to the band midpoint.
func (g *Generator) filterAndSort(legs []contracts.ContractLeg, price, deltaMin, deltaMax float64) []contracts.ContractLeg {
	target := (deltaMin + deltaMax) / 2

	// moneyness 대역: OTM put 기준 strike/price
	monMax := 1.0 - deltaMin // 예: delta 0.12 대역 → strike/price ≤ 0.88
	monMin := 1.0 - 2.5*deltaMax
	monTarget := (monMin + monMax) / 2

	type scored struct {
		leg  contracts.ContractLeg
		dist float64
	}
	var kept []scored

	for _, leg := range legs {
		absDelta := math.Abs(leg.Delta)
		if absDelta >= g.config.DeltaSanityFloor {
			if absDelta < deltaMin || absDelta > deltaMax {
				continue
			}
			kept = append(kept, scored{leg, math.Abs(absDelta - target)})
			continue
		}
		// 델타 신뢰 불가 → moneyness 기반 필터
		ratio := leg.Strike / price
		if ratio < monMin || ratio > monMax {
			continue
		}
		kept = append(kept, scored{leg, math.Abs(ratio - monTarget)})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].dist < kept[j].dist })

	out := make([]contracts.ContractLeg, len(kept))
	for i, s := range kept {
		out[i] = s.leg
	}
	return out
}

// buildSpreads pairs short strikes with lower long strikes and validates
// each spread's economics.
func (g *Generator) buildSpreads(symbol string, legs []contracts.ContractLeg, expiry time.Time, price float64, asOf time.Time) []*contracts.Candidate {
	if len(legs) < 2 {
		return nil
	}

	// 스프레드 구성은 행사가 내림차순 기준 (short가 ATM에 더 가깝다)
	byStrike := make([]contracts.ContractLeg, len(legs))
	copy(byStrike, legs)
	sort.SliceStable(byStrike, func(i, j int) bool { return byStrike[i].Strike > byStrike[j].Strike })

	index := make(map[float64]int, len(byStrike))
	for i, leg := range byStrike {
		index[leg.Strike] = i
	}

	var out []*contracts.Candidate
	for _, short := range legs { // 타깃 델타에 가까운 순으로 short 선택
		if len(out) >= g.config.MaxSpreadsPerExpiry {
			break
		}
		si, ok := index[short.Strike]
		if !ok {
			continue
		}
		for _, offset := range g.config.SpreadOffsets {
			li := si + offset
			if li >= len(byStrike) {
				break
			}
			long := byStrike[li]
			if c := g.assemble(symbol, short, long, expiry, price, asOf); c != nil {
				out = append(out, c)
				if len(out) >= g.config.MaxSpreadsPerExpiry {
					break
				}
			}
		}
	}
	return out
}

// assemble validates and materializes one spread. nil이면 필터 아웃.
func (g *Generator) assemble(symbol string, short, long contracts.ContractLeg, expiry time.Time, price float64, asOf time.Time) *contracts.Candidate {
	width := short.Strike - long.Strike
	if width <= 0 {
		return nil
	}

	credit := short.Mid() - long.Mid()
	if credit <= 0 {
		return nil
	}

	maxProfit := credit
	maxLoss := width - credit
	if maxLoss <= 0 {
		return nil
	}
	if maxProfit/maxLoss < g.config.MinRiskReward {
		return nil
	}

	short.Side = contracts.SideSell
	long.Side = contracts.SideBuy

	pop := g.config.FallbackPOP
	if math.Abs(short.Delta) >= g.config.DeltaSanityFloor {
		pop = 1 - math.Abs(short.Delta)
	}

	dte := int(math.Ceil(expiry.Sub(asOf).Hours() / 24))
	if dte < 0 {
		return nil
	}

	return &contracts.Candidate{
		Symbol:          symbol,
		Strategy:        contracts.StrategyPutCreditSpread,
		Short:           short,
		Long:            long,
		Expiry:          expiry,
		DTE:             dte,
		UnderlyingPrice: price,
		Width:           width,
		Credit:          credit,
		MaxProfit:       maxProfit,
		MaxLoss:         maxLoss,
		Breakeven:       short.Strike - credit,
		EstPOP:          pop,
		Guardrails:      make(map[string]bool),
	}
}

func groupByExpiry(legs []contracts.ContractLeg) map[time.Time][]contracts.ContractLeg {
	byExpiry := make(map[time.Time][]contracts.ContractLeg)
	for _, leg := range legs {
		key := leg.Expiry.Truncate(24 * time.Hour)
		byExpiry[key] = append(byExpiry[key], leg)
	}
	return byExpiry
}

func sortedExpiries(byExpiry map[time.Time][]contracts.ContractLeg) []time.Time {
	out := make([]time.Time, 0, len(byExpiry))
	for t := range byExpiry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
