package contracts

import "time"

// Right is the option right (put or call)
type Right string

const (
	RightPut  Right = "PUT"
	RightCall Right = "CALL"
)

// Side is the position side of a leg inside a spread
type Side string

const (
	SideSell Side = "SELL"
	SideBuy  Side = "BUY"
)

// ContractLeg represents a single option contract.
// 한 번 수집된 뒤에는 불변으로 취급한다 (런 단위 스냅샷).
type ContractLeg struct {
	Symbol       string    `json:"symbol"`
	Strike       float64   `json:"strike"`
	Expiry       time.Time `json:"expiry"`
	Right        Right     `json:"right"`
	Side         Side      `json:"side,omitempty"` // set by the candidate generator
	Bid          float64   `json:"bid"`
	Ask          float64   `json:"ask"`
	Delta        float64   `json:"delta"`
	Gamma        float64   `json:"gamma"`
	Theta        float64   `json:"theta"`
	Vega         float64   `json:"vega"`
	IV           float64   `json:"iv"`
	OpenInterest int64     `json:"open_interest"`
	Volume       int64     `json:"volume"`
}

// Mid returns the bid/ask midpoint
func (l ContractLeg) Mid() float64 {
	return (l.Bid + l.Ask) / 2
}

// SpreadPct returns the bid/ask spread as a percentage of the strike.
// Strike가 0이면 0을 반환한다.
func (l ContractLeg) SpreadPct() float64 {
	if l.Strike <= 0 {
		return 0
	}
	return (l.Ask - l.Bid) / l.Strike * 100
}

// OptionChain is a per-symbol snapshot of option contracts
type OptionChain struct {
	Symbol    string        `json:"symbol"`
	AsOf      time.Time     `json:"as_of"`
	Contracts []ContractLeg `json:"contracts"`
}

// Puts returns only the put contracts
func (c *OptionChain) Puts() []ContractLeg {
	puts := make([]ContractLeg, 0, len(c.Contracts))
	for _, ct := range c.Contracts {
		if ct.Right == RightPut {
			puts = append(puts, ct)
		}
	}
	return puts
}

// Quote is a price snapshot for the underlying
type Quote struct {
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	ChangePct   float64   `json:"change_pct"`
	Change5DPct *float64  `json:"change_5d_pct,omitempty"` // nil when the provider has no 5-day history
	Volume      int64     `json:"volume"`
	AsOf        time.Time `json:"as_of"`
}

// Fundamentals holds company overview ratios and ranges
type Fundamentals struct {
	Symbol       string     `json:"symbol"`
	PERatio      float64    `json:"pe_ratio"`
	ProfitMargin float64    `json:"profit_margin"`
	ROE          float64    `json:"roe"`
	Beta         float64    `json:"beta"`
	MA50         float64    `json:"ma_50"`
	MA200        float64    `json:"ma_200"`
	Week52High   float64    `json:"week_52_high"`
	Week52Low    float64    `json:"week_52_low"`
	EarningsDate *time.Time `json:"earnings_date,omitempty"`
	NextDividend *time.Time `json:"next_dividend,omitempty"`
}

// Range52WPosition returns the position of price within the 52-week range,
// 0–100 (0 = at the low, 100 = at the high). Returns nil when the range is
// degenerate.
func (f *Fundamentals) Range52WPosition(price float64) *float64 {
	span := f.Week52High - f.Week52Low
	if span <= 0 {
		return nil
	}
	pos := (price - f.Week52Low) / span * 100
	if pos < 0 {
		pos = 0
	}
	if pos > 100 {
		pos = 100
	}
	return &pos
}

// MacroPoint is one observation in a macro time series
type MacroPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// MacroSeries is a macro time series keyed by series id (e.g. CPI, FEDFUNDS)
type MacroSeries struct {
	ID     string       `json:"id"`
	Points []MacroPoint `json:"points"` // newest first
}

// Latest returns the most recent observation, or nil when empty
func (s *MacroSeries) Latest() *MacroPoint {
	if len(s.Points) == 0 {
		return nil
	}
	return &s.Points[0]
}

// YoYChange returns the year-over-year change of the latest observation
// against the observation closest to 12 months earlier. Returns nil when the
// series is too short.
func (s *MacroSeries) YoYChange() *float64 {
	latest := s.Latest()
	if latest == nil {
		return nil
	}
	target := latest.Date.AddDate(-1, 0, 0)
	var base *MacroPoint
	for i := range s.Points {
		p := &s.Points[i]
		if !p.Date.After(target) {
			base = p
			break
		}
	}
	if base == nil || base.Value == 0 {
		return nil
	}
	yoy := (latest.Value - base.Value) / base.Value * 100
	return &yoy
}

// Headline is one ranked search snippet
type Headline struct {
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
}
