package features

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

// Engineer derives per-symbol quantitative features from raw snapshots
// ⭐ SSOT: S3 피처 산출은 여기서만
type Engineer struct {
	logger *logger.Logger
}

// NewEngineer creates a new feature engineer
func NewEngineer(log *logger.Logger) *Engineer {
	return &Engineer{logger: log}
}

// Derive computes features for one symbol. 근거 없는 값은 nil로 남긴다
// (IVRankHistory/TermSlope/PutSkew는 원천 데이터가 없어 항상 nil).
func (e *Engineer) Derive(
	ctx context.Context,
	symbol string,
	chain *contracts.OptionChain,
	quote *contracts.Quote,
	fund *contracts.Fundamentals,
	macroSeries map[string]contracts.MacroSeries,
) *contracts.SymbolFeatures {
	f := &contracts.SymbolFeatures{
		Symbol:      symbol,
		MacroRegime: contracts.RegimeUnknown,
	}

	if chain != nil && quote != nil && quote.Price > 0 {
		e.deriveChainFeatures(f, chain, quote.Price)
	}

	if quote != nil && quote.Change5DPct != nil {
		v := *quote.Change5DPct
		f.Momentum5D = &v
	}

	if quote != nil && fund != nil && fund.MA50 > 0 {
		m := (quote.Price - fund.MA50) / fund.MA50 * 100
		f.MomentumVsMA50 = &m
	}

	f.MacroRegime = DeriveMacroRegime(macroSeries)

	e.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"regime": f.MacroRegime,
	}).Debug("Derived symbol features")

	return f
}

// deriveChainFeatures fills volatility and positioning features
func (e *Engineer) deriveChainFeatures(f *contracts.SymbolFeatures, chain *contracts.OptionChain, price float64) {
	var (
		putVolume, callVolume int64
		putOI, callOI         int64
		totalVolume           int64
	)

	for _, c := range chain.Contracts {
		totalVolume += c.Volume
		f.TotalOpenInterest += c.OpenInterest
		if c.Right == contracts.RightPut {
			putVolume += c.Volume
			putOI += c.OpenInterest
		} else {
			callVolume += c.Volume
			callOI += c.OpenInterest
		}
	}

	if len(chain.Contracts) > 0 {
		f.AvgContractVolume = float64(totalVolume) / float64(len(chain.Contracts))
	}
	if callVolume > 0 {
		r := float64(putVolume) / float64(callVolume)
		f.PutCallVolumeRatio = &r
	}
	if callOI > 0 {
		r := float64(putOI) / float64(callOI)
		f.PutCallOIRatio = &r
	}

	f.ChainIVs = usableIVs(chain)

	if atm := atmIV(chain, price); atm != nil {
		f.ATMIV = atm
		if rank := ChainIVPercentile(chain, *atm); rank != nil {
			f.IVRankChain = rank
		}
	}
}

// atmIV returns the IV of the contract whose strike is closest to the
// current price, preferring contracts with a usable IV.
func atmIV(chain *contracts.OptionChain, price float64) *float64 {
	var best *contracts.ContractLeg
	bestDist := math.MaxFloat64
	for i := range chain.Contracts {
		c := &chain.Contracts[i]
		if c.IV <= 0 {
			continue
		}
		dist := math.Abs(c.Strike - price)
		if dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	if best == nil {
		return nil
	}
	iv := best.IV
	return &iv
}

// ChainIVPercentile returns the percentile rank (0–100) of iv within all
// usable chain IVs. 체인 내 유효 IV가 2개 미만이면 nil.
func ChainIVPercentile(chain *contracts.OptionChain, iv float64) *float64 {
	ivs := usableIVs(chain)
	if len(ivs) < 2 {
		return nil
	}

	below := 0
	for _, v := range ivs {
		if v < iv {
			below++
		}
	}
	rank := float64(below) / float64(len(ivs)) * 100
	return &rank
}

// usableIVs collects the chain's positive IVs in ascending order
func usableIVs(chain *contracts.OptionChain) []float64 {
	ivs := make([]float64, 0, len(chain.Contracts))
	for _, c := range chain.Contracts {
		if c.IV > 0 {
			ivs = append(ivs, c.IV)
		}
	}
	sort.Float64s(ivs)
	return ivs
}

// DeriveMacroRegime tags the macro regime from fed funds trend and
// inflation YoY. 시리즈가 없으면 unknown.
//
// risk_off: 금리 상승 추세 + 인플레이션 YoY 4% 초과
// risk_on:  금리 하락/보합 + 인플레이션 YoY 3% 미만
func DeriveMacroRegime(series map[string]contracts.MacroSeries) string {
	fed, hasFed := findSeries(series, "FEDFUNDS")
	cpi, hasCPI := findSeries(series, "CPI")
	if !hasFed && !hasCPI {
		return contracts.RegimeUnknown
	}

	ratesRising := false
	if hasFed && len(fed.Points) >= 4 {
		// 최근 관측치 vs 3개월 전
		ratesRising = fed.Points[0].Value > fed.Points[3].Value
	}

	var inflation *float64
	if hasCPI {
		inflation = cpi.YoYChange()
	}

	switch {
	case ratesRising && inflation != nil && *inflation > 4.0:
		return contracts.RegimeRiskOff
	case !ratesRising && inflation != nil && *inflation < 3.0:
		return contracts.RegimeRiskOn
	default:
		return contracts.RegimeNeutral
	}
}

// findSeries matches a series whose id contains the given tag
func findSeries(series map[string]contracts.MacroSeries, tag string) (contracts.MacroSeries, bool) {
	for id, s := range series {
		if strings.Contains(strings.ToUpper(id), strings.ToUpper(tag)) {
			return s, true
		}
	}
	return contracts.MacroSeries{}, false
}

// NewsVolumeZ computes the 7-day news-volume z-score against the 90-day
// baseline using a Poisson approximation:
//
//	z = (mean7 − mean90) / sqrt(mean90)
//
// 헤드라인이 90일치보다 적거나 baseline이 0이면 nil.
func NewsVolumeZ(headlines []contracts.Headline, asOf time.Time) (count7, count90 int, z *float64) {
	for _, h := range headlines {
		if h.PublishedAt.IsZero() {
			continue
		}
		age := asOf.Sub(h.PublishedAt)
		if age < 0 || age > 90*24*time.Hour {
			continue
		}
		count90++
		if age <= 7*24*time.Hour {
			count7++
		}
	}

	if count90 == 0 {
		return count7, count90, nil
	}

	mean7 := float64(count7) / 7.0
	mean90 := float64(count90) / 90.0
	if mean90 <= 0 {
		return count7, count90, nil
	}

	zv := (mean7 - mean90) / math.Sqrt(mean90)
	return count7, count90, &zv
}
