package policy

import (
	"math"
	"strings"

	"github.com/wonny/vertex/internal/contracts"
)

// Input bundles everything an extractor may consult for one candidate
type Input struct {
	Candidate    *contracts.Candidate
	Features     *contracts.SymbolFeatures
	Fundamentals *contracts.Fundamentals
	Quote        *contracts.Quote
	Headlines    []contracts.Headline
	MacroSeries  map[string]contracts.MacroSeries
}

// ExtractorFunc resolves a factor's real value for a candidate.
// 값을 확보할 수 없으면 nil — 임의의 대체값을 만들지 않는다.
type ExtractorFunc func(in Input) *float64

// Registry maps factor keys to extractors. 새 팩터는 Register로 추가한다.
type Registry struct {
	extractors map[string]ExtractorFunc
}

// NewRegistry returns a registry pre-populated with the built-in factors
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]ExtractorFunc)}
	r.registerBuiltins()
	return r
}

// Register adds or replaces an extractor for a factor key
func (r *Registry) Register(key string, fn ExtractorFunc) {
	r.extractors[strings.ToLower(key)] = fn
}

// Resolve returns the factor value, or nil when the key is unknown or the
// value cannot be computed from available data.
func (r *Registry) Resolve(key string, in Input) *float64 {
	fn, ok := r.extractors[strings.ToLower(key)]
	if !ok {
		return nil
	}
	return fn(in)
}

// Keys returns all registered factor keys
func (r *Registry) Keys() []string {
	out := make([]string, 0, len(r.extractors))
	for k := range r.extractors {
		out = append(out, k)
	}
	return out
}

func (r *Registry) registerBuiltins() {
	r.Register("delta", func(in Input) *float64 {
		if in.Candidate == nil {
			return nil
		}
		d := math.Abs(in.Candidate.Short.Delta)
		if d < 0.001 {
			return nil
		}
		return &d
	})

	r.Register("iv_rank", func(in Input) *float64 {
		if in.Candidate == nil || in.Features == nil {
			return nil
		}
		// 후보 short 레그 IV의 체인 내 백분위 — 심볼 단위 ATM 랭크가 아니다
		return in.Features.IVPercentileOf(in.Candidate.Short.IV)
	})

	r.Register("open_interest", func(in Input) *float64 {
		if in.Candidate == nil {
			return nil
		}
		// 두 레그 중 약한 쪽이 구속 조건이다
		oi := float64(min64(in.Candidate.Short.OpenInterest, in.Candidate.Long.OpenInterest))
		return &oi
	})

	r.Register("bid_ask_spread_pct", func(in Input) *float64 {
		if in.Candidate == nil {
			return nil
		}
		if in.Candidate.Short.Ask <= 0 || in.Candidate.Long.Ask <= 0 {
			return nil // 호가 미확보
		}
		worst := in.Candidate.Short.SpreadPct()
		if l := in.Candidate.Long.SpreadPct(); l > worst {
			worst = l
		}
		return &worst
	})

	r.Register("credit_to_width", func(in Input) *float64 {
		if in.Candidate == nil || in.Candidate.Width <= 0 {
			return nil
		}
		v := in.Candidate.Credit / in.Candidate.Width
		return &v
	})

	r.Register("pop", func(in Input) *float64 {
		if in.Candidate == nil {
			return nil
		}
		v := in.Candidate.EstPOP
		return &v
	})

	r.Register("dte", func(in Input) *float64 {
		if in.Candidate == nil {
			return nil
		}
		v := float64(in.Candidate.DTE)
		return &v
	})

	r.Register("pe_ratio", func(in Input) *float64 {
		if in.Fundamentals == nil || in.Fundamentals.PERatio <= 0 {
			return nil
		}
		v := in.Fundamentals.PERatio
		return &v
	})

	r.Register("profit_margin", func(in Input) *float64 {
		if in.Fundamentals == nil {
			return nil
		}
		v := in.Fundamentals.ProfitMargin
		if v == 0 {
			return nil
		}
		return &v
	})

	r.Register("roe", func(in Input) *float64 {
		if in.Fundamentals == nil {
			return nil
		}
		v := in.Fundamentals.ROE
		if v == 0 {
			return nil
		}
		return &v
	})

	r.Register("beta", func(in Input) *float64 {
		if in.Fundamentals == nil || in.Fundamentals.Beta <= 0 {
			return nil
		}
		v := in.Fundamentals.Beta
		return &v
	})

	r.Register("momentum_vs_ma50", func(in Input) *float64 {
		if in.Features == nil {
			return nil
		}
		return in.Features.MomentumVsMA50
	})

	r.Register("momentum_5d", func(in Input) *float64 {
		if in.Features == nil {
			return nil
		}
		return in.Features.Momentum5D
	})

	r.Register("range_52w_position", func(in Input) *float64 {
		if in.Fundamentals == nil || in.Quote == nil {
			return nil
		}
		return in.Fundamentals.Range52WPosition(in.Quote.Price)
	})

	r.Register("sentiment", func(in Input) *float64 {
		if len(in.Headlines) == 0 {
			return nil
		}
		v := SentimentScore(in.Headlines)
		return &v
	})

	r.Register("put_call_volume_ratio", func(in Input) *float64 {
		if in.Features == nil {
			return nil
		}
		return in.Features.PutCallVolumeRatio
	})

	r.Register("put_call_oi_ratio", func(in Input) *float64 {
		if in.Features == nil {
			return nil
		}
		return in.Features.PutCallOIRatio
	})

	r.Register("inflation_yoy", func(in Input) *float64 {
		for id, s := range in.MacroSeries {
			if strings.Contains(strings.ToUpper(id), "CPI") {
				return s.YoYChange()
			}
		}
		return nil
	})

	r.Register("news_z_score", func(in Input) *float64 {
		if in.Features == nil {
			return nil
		}
		return in.Features.NewsZScore
	})
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

var bullishWords = []string{"beat", "upgrade", "surge", "rally", "growth", "record", "strong", "outperform", "buyback", "raise"}
var bearishWords = []string{"miss", "downgrade", "plunge", "selloff", "lawsuit", "probe", "weak", "cut", "recall", "warning"}

// SentimentScore counts bullish/bearish keyword hits across headline text
// and maps the net ratio onto [-1, 1].
func SentimentScore(headlines []contracts.Headline) float64 {
	var bull, bear int
	for _, h := range headlines {
		text := strings.ToLower(h.Title + " " + h.Snippet)
		for _, w := range bullishWords {
			if strings.Contains(text, w) {
				bull++
			}
		}
		for _, w := range bearishWords {
			if strings.Contains(text, w) {
				bear++
			}
		}
	}
	total := bull + bear
	if total == 0 {
		return 0
	}
	return float64(bull-bear) / float64(total)
}
