package contracts

// Macro regime tags derived from the macro series
const (
	RegimeRiskOn  = "risk_on"
	RegimeNeutral = "neutral"
	RegimeRiskOff = "risk_off"
	RegimeUnknown = "unknown"
)

// SymbolFeatures holds per-symbol quantitative features derived in S3.
// 계산 근거가 없는 값은 nil로 남긴다. 랜덤/더미 값 금지 — nil은
// 컴플라이언스 채점에서 "값 미확보"로 처리되어 분모에서 빠진다.
type SymbolFeatures struct {
	Symbol string `json:"symbol"`

	// Volatility proxies from the chain snapshot
	ATMIV       *float64  `json:"atm_iv,omitempty"`
	IVRankChain *float64  `json:"iv_rank_chain,omitempty"` // ATM IV의 체인 내 백분위 (0–100)
	ChainIVs    []float64 `json:"chain_ivs,omitempty"`     // 체인 내 유효 IV 전체, 오름차순

	// Liquidity / positioning
	PutCallVolumeRatio *float64 `json:"put_call_volume_ratio,omitempty"`
	PutCallOIRatio     *float64 `json:"put_call_oi_ratio,omitempty"`
	TotalOpenInterest  int64    `json:"total_open_interest"`
	AvgContractVolume  float64  `json:"avg_contract_volume"`

	// Momentum
	Momentum5D     *float64 `json:"momentum_5d,omitempty"`      // 5일 수익률 (%)
	MomentumVsMA50 *float64 `json:"momentum_vs_ma50,omitempty"` // (price-MA50)/MA50 (%)

	// News volume (S5에서 수집된 헤드라인으로 채워짐)
	NewsCount7D  int      `json:"news_count_7d"`
	NewsCount90D int      `json:"news_count_90d"`
	NewsZScore   *float64 `json:"news_z_score,omitempty"`

	// Known-unknowns: 원천 데이터가 없어 계산 불가. 항상 nil.
	IVRankHistory *float64 `json:"iv_rank_history,omitempty"`
	TermSlope     *float64 `json:"term_slope,omitempty"`
	PutSkew       *float64 `json:"put_skew,omitempty"`

	MacroRegime string `json:"macro_regime"`
}

// IVPercentileOf returns the percentile rank (0–100) of iv within the
// chain IV distribution captured at derivation time. 유효 IV가 2개
// 미만이거나 iv가 무효면 nil.
func (f *SymbolFeatures) IVPercentileOf(iv float64) *float64 {
	if f == nil || iv <= 0 || len(f.ChainIVs) < 2 {
		return nil
	}
	below := 0
	for _, v := range f.ChainIVs {
		if v < iv {
			below++
		}
	}
	rank := float64(below) / float64(len(f.ChainIVs)) * 100
	return &rank
}
