package pipeline

import (
	"sync"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/internal/guardrails"
)

// State is the accumulating run-state threaded through the stages.
// 각 스테이지는 부분 업데이트를 병합한다 (reducer). 스테이지는 순차
// 실행되므로 잠금은 스테이지 내부 심볼 팬아웃에서만 필요하다.
type State struct {
	Run    *contracts.Run
	Policy *contracts.Policy

	// S1 수집 결과 (심볼별; 실패한 심볼은 키 없음)
	Chains       map[string]*contracts.OptionChain
	Quotes       map[string]*contracts.Quote
	Fundamentals map[string]*contracts.Fundamentals

	// S2
	MacroSeries map[string]contracts.MacroSeries

	// S3
	Features map[string]*contracts.SymbolFeatures

	// S4 — 생성 순서 보존 (Selector가 결정적으로 재정렬)
	Candidates []*contracts.Candidate

	// S5
	Guardrails map[string]*guardrails.SymbolResult

	// S6 — 후보별 조정 정책 (S7 재채점용)
	AdjustedPolicies map[*contracts.Candidate]*contracts.Policy

	// S8
	Selected []*contracts.Candidate

	StageResults []contracts.StageResult

	mu sync.Mutex
}

// NewState initializes the run state
func NewState(run *contracts.Run) *State {
	return &State{
		Run:              run,
		Chains:           make(map[string]*contracts.OptionChain),
		Quotes:           make(map[string]*contracts.Quote),
		Fundamentals:     make(map[string]*contracts.Fundamentals),
		Features:         make(map[string]*contracts.SymbolFeatures),
		Guardrails:       make(map[string]*guardrails.SymbolResult),
		AdjustedPolicies: make(map[*contracts.Candidate]*contracts.Policy),
	}
}

// AddError appends a non-fatal stage error. 팬아웃 고루틴에서 호출되므로
// 잠금으로 보호한다 — lost update 금지.
func (s *State) AddError(stage contracts.Stage, symbol string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Run.Errors = append(s.Run.Errors, contracts.NewStageError(stage, symbol, err))
}

// MergeMarket merges one symbol's S1 fetch results under the lock
func (s *State) MergeMarket(symbol string, chain *contracts.OptionChain, quote *contracts.Quote, fund *contracts.Fundamentals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chain != nil {
		s.Chains[symbol] = chain
	}
	if quote != nil {
		s.Quotes[symbol] = quote
	}
	if fund != nil {
		s.Fundamentals[symbol] = fund
	}
}

// RecordStage appends one stage's summary row
func (s *State) RecordStage(result contracts.StageResult) {
	s.StageResults = append(s.StageResults, result)
}
