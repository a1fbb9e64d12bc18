package contracts

import "time"

// StrategyPutCreditSpread is the only strategy the generator currently emits
const StrategyPutCreditSpread = "put_credit_spread"

// Candidate is one vertical credit spread under evaluation.
// S4에서 생성된 뒤 각 스테이지가 자기 결과 필드를 채워 넣는다.
// 스테이지는 순차 실행되므로 동시 변경은 없다.
type Candidate struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`

	Short ContractLeg `json:"short"`
	Long  ContractLeg `json:"long"`

	Expiry          time.Time `json:"expiry"`
	DTE             int       `json:"dte"`
	UnderlyingPrice float64   `json:"underlying_price"`

	// Derived economics (per share)
	Width     float64 `json:"width"`
	Credit    float64 `json:"credit"`
	MaxProfit float64 `json:"max_profit"`
	MaxLoss   float64 `json:"max_loss"`
	Breakeven float64 `json:"breakeven"`
	EstPOP    float64 `json:"est_pop"`

	// Guardrail flags. false는 "안전 보장"이 아니라 "확인 안 됨"일 수 있다.
	Guardrails map[string]bool `json:"guardrails,omitempty"`

	// Stage outputs
	Reasoning  *ReasoningChain    `json:"reasoning,omitempty"`
	Compliance *ComplianceResult  `json:"compliance,omitempty"`
	Evaluation *Evaluation        `json:"evaluation,omitempty"`
	RiskScore  *RiskAdjustedScore `json:"risk_score,omitempty"`
	Selection  *SelectionInfo     `json:"selection,omitempty"`

	// Diagnostics is an append-only audit trail. 절대 제어 흐름에 읽어
	// 들이지 않는다 (설명/감사 전용).
	Diagnostics []DiagnosticNote `json:"diagnostics,omitempty"`
}

// RiskReward returns max profit over max loss, 0 when max loss is not positive
func (c *Candidate) RiskReward() float64 {
	if c.MaxLoss <= 0 {
		return 0
	}
	return c.MaxProfit / c.MaxLoss
}

// CreditToWidth returns entry credit over spread width
func (c *Candidate) CreditToWidth() float64 {
	if c.Width <= 0 {
		return 0
	}
	return c.Credit / c.Width
}

// AddDiagnostic appends one audit note from a stage
func (c *Candidate) AddDiagnostic(stage Stage, key string, value interface{}) {
	c.Diagnostics = append(c.Diagnostics, DiagnosticNote{
		Stage: stage,
		Key:   key,
		Value: value,
		At:    time.Now(),
	})
}

// DiagnosticNote is one entry of the append-only diagnostic record
type DiagnosticNote struct {
	Stage Stage       `json:"stage"`
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
	At    time.Time   `json:"at"`
}

// Recommendation is the categorical outcome of the reasoning stage
type Recommendation string

const (
	RecommendAccept Recommendation = "ACCEPT"
	RecommendReject Recommendation = "REJECT"
	RecommendReview Recommendation = "REVIEW"
)

// ReasoningChain is the deep-reasoning record for one candidate.
// S6 완료 후에는 불변으로 취급한다.
type ReasoningChain struct {
	BaselineScore  float64               `json:"baseline_score"`
	Compliance     *ComplianceResult     `json:"compliance,omitempty"`
	History        HistoricalContext     `json:"history"`
	Market         MarketFactors         `json:"market"`
	Adjustments    []ThresholdAdjustment `json:"adjustments,omitempty"`
	AdjustedScore  float64               `json:"adjusted_score"`
	Recommendation Recommendation        `json:"recommendation"`
	Error          string                `json:"error,omitempty"` // 진단용: 평가 중 예외 메시지
}

// HistoricalContext summarizes prior same-symbol outcomes.
// HasData=false인 경우 나머지 필드를 절대 해석하지 않는다.
type HistoricalContext struct {
	HasData     bool     `json:"has_data"`
	TradeCount  int      `json:"trade_count"`
	SuccessRate float64  `json:"success_rate"` // 0–100
	AvgPnL      float64  `json:"avg_pnl"`
	Patterns    []string `json:"patterns,omitempty"`
}

// MarketFactors is the market-factor synthesis attached to the chain
type MarketFactors struct {
	IVRegime       string   `json:"iv_regime"`       // elevated / normal / compressed / unknown
	NewsSentiment  string   `json:"news_sentiment"`  // positive / neutral / negative / unknown
	SentimentScore float64  `json:"sentiment_score"` // 키워드 히트 비율, [-1, 1]
	MacroRegime    string   `json:"macro_regime"`    // risk_on / neutral / risk_off / unknown
	KeyInsights    []string `json:"key_insights,omitempty"`
}

// ThresholdAdjustment records one policy threshold nudge with its reason
type ThresholdAdjustment struct {
	FactorKey string  `json:"factor_key"`
	Original  float64 `json:"original"`
	Adjusted  float64 `json:"adjusted"`
	Reason    string  `json:"reason"`
}

// ComplianceResult is the weighted policy-fit outcome for one candidate
type ComplianceResult struct {
	Score         float64       `json:"score"` // 0–100
	Factors       []FactorScore `json:"factors"`
	Violations    []string      `json:"violations,omitempty"`
	Passes        []string      `json:"passes,omitempty"`
	MissingWeight float64       `json:"missing_weight"` // 값을 구하지 못해 제외된 가중치 합
	Fallback      bool          `json:"fallback"`       // 기본 정책으로 채점됨
}

// FactorScore is per-factor scoring detail for audit
type FactorScore struct {
	Key    string   `json:"key"`
	Name   string   `json:"name"`
	Weight float64  `json:"weight"`
	Value  *float64 `json:"value,omitempty"` // nil이면 값 미확보 (분모에서 제외)
	Target string   `json:"target"`
	Score  float64  `json:"score"`
	Pass   *bool    `json:"pass,omitempty"` // nil이면 임계값 없음 (합격/불합격 집계 제외)
}

// SelectionInfo annotates a selected candidate with its final standing
type SelectionInfo struct {
	Group          string   `json:"group"` // perfect / composite
	Rank           int      `json:"rank"`
	BlendedScore   float64  `json:"blended_score"`
	Reason         string   `json:"reason"`
	FailingFactors []string `json:"failing_factors,omitempty"` // 가중치 상위 2개 위반 팩터
}
