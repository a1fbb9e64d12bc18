package contracts

import "errors"

// ⭐ SSOT: 투자 정책(IPS) 타입 정의는 여기서만

// Direction determines how a factor value is compared to its threshold
type Direction string

const (
	DirectionGTE   Direction = "gte"
	DirectionLTE   Direction = "lte"
	DirectionRange Direction = "range"
	DirectionEQ    Direction = "eq"
)

// Policy loading errors. 파이프라인은 이 에러를 "정책 없음"으로 취급하고
// 기본 정책으로 폴백해야 한다 (다른 정책으로 대체 금지).
var (
	ErrPolicyNotFound = errors.New("policy not found")
	ErrPolicyShape    = errors.New("policy has invalid shape")
)

// PolicyFactor is one weighted, thresholded factor of the trading policy
type PolicyFactor struct {
	Key          string    `json:"key"`
	DisplayName  string    `json:"display_name"`
	Weight       float64   `json:"weight"` // 0–1; 활성 가중치 합은 채점 시 정규화
	Threshold    *float64  `json:"threshold,omitempty"`
	ThresholdMax *float64  `json:"threshold_max,omitempty"` // range 방향에서만 사용
	Direction    Direction `json:"direction"`
	Enabled      bool      `json:"enabled"`
}

// HasThreshold reports whether the factor carries a usable threshold
func (f *PolicyFactor) HasThreshold() bool {
	if f.Threshold == nil {
		return false
	}
	if f.Direction == DirectionRange && f.ThresholdMax == nil {
		return false
	}
	return true
}

// Policy is the active set of factors for one run
type Policy struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Factors  []PolicyFactor `json:"factors"`
	Fallback bool           `json:"fallback"` // true when the stored policy could not be loaded
}

// Enabled returns only the enabled factors
func (p *Policy) Enabled() []PolicyFactor {
	out := make([]PolicyFactor, 0, len(p.Factors))
	for _, f := range p.Factors {
		if f.Enabled {
			out = append(out, f)
		}
	}
	return out
}

// Factor returns the enabled factor with the given key, or nil
func (p *Policy) Factor(key string) *PolicyFactor {
	for i := range p.Factors {
		if p.Factors[i].Key == key && p.Factors[i].Enabled {
			return &p.Factors[i]
		}
	}
	return nil
}

// Clone returns a deep copy. 임계값 조정은 복사본에만 적용해야 한다.
func (p *Policy) Clone() *Policy {
	cp := &Policy{ID: p.ID, Name: p.Name, Fallback: p.Fallback}
	cp.Factors = make([]PolicyFactor, len(p.Factors))
	for i, f := range p.Factors {
		cf := f
		if f.Threshold != nil {
			v := *f.Threshold
			cf.Threshold = &v
		}
		if f.ThresholdMax != nil {
			v := *f.ThresholdMax
			cf.ThresholdMax = &v
		}
		cp.Factors[i] = cf
	}
	return cp
}

// Validate checks structural invariants of the factor list
func (p *Policy) Validate() error {
	for _, f := range p.Factors {
		if f.Key == "" {
			return ErrPolicyShape
		}
		if f.Weight < 0 || f.Weight > 1 {
			return ErrPolicyShape
		}
		switch f.Direction {
		case DirectionGTE, DirectionLTE, DirectionEQ:
		case DirectionRange:
			if f.Threshold != nil && f.ThresholdMax == nil {
				return ErrPolicyShape
			}
		default:
			return ErrPolicyShape
		}
	}
	return nil
}
