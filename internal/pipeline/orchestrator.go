package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/vertex/internal/candidates"
	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/internal/evaluation"
	"github.com/wonny/vertex/internal/features"
	"github.com/wonny/vertex/internal/guardrails"
	"github.com/wonny/vertex/internal/policy"
	"github.com/wonny/vertex/internal/reasoning"
	"github.com/wonny/vertex/internal/riskscore"
	"github.com/wonny/vertex/internal/selection"
	"github.com/wonny/vertex/pkg/logger"
)

// Default macro series fetched in S2
var defaultMacroSeries = []string{"FEDFUNDS", "CPIAUCSL"}

// Orchestrator coordinates the 9-stage candidate pipeline
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	// External collaborators
	policyLoader contracts.PolicyLoader
	chains       contracts.OptionChainProvider
	quotes       contracts.QuoteProvider
	fundamentals contracts.FundamentalsProvider
	macro        contracts.MacroProvider

	// Stage components
	engineer   *features.Engineer
	generator  *candidates.Generator
	checker    *guardrails.Checker
	engine     *reasoning.Engine
	scorer     *policy.Scorer
	evaluator  *evaluation.Evaluator
	riskScorer *riskscore.Scorer
	selector   *selection.Selector

	// Best-effort persistence (nil이면 건너뜀)
	runRepo       contracts.RunRepository
	snapshotRepo  contracts.SnapshotRepository
	candidateRepo contracts.CandidateRepository
	rationale     contracts.RationaleWriter

	maxParallelSymbols int
	logger             *logger.Logger
}

// Deps bundles the orchestrator's collaborators
type Deps struct {
	PolicyLoader contracts.PolicyLoader
	Chains       contracts.OptionChainProvider
	Quotes       contracts.QuoteProvider
	Fundamentals contracts.FundamentalsProvider
	Macro        contracts.MacroProvider

	Engineer   *features.Engineer
	Generator  *candidates.Generator
	Checker    *guardrails.Checker
	Engine     *reasoning.Engine
	Scorer     *policy.Scorer
	Evaluator  *evaluation.Evaluator
	RiskScorer *riskscore.Scorer
	Selector   *selection.Selector

	RunRepo       contracts.RunRepository
	SnapshotRepo  contracts.SnapshotRepository
	CandidateRepo contracts.CandidateRepository
	Rationale     contracts.RationaleWriter

	MaxParallelSymbols int
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(deps Deps, log *logger.Logger) *Orchestrator {
	maxParallel := deps.MaxParallelSymbols
	if maxParallel <= 0 {
		maxParallel = 2
	}
	return &Orchestrator{
		policyLoader:       deps.PolicyLoader,
		chains:             deps.Chains,
		quotes:             deps.Quotes,
		fundamentals:       deps.Fundamentals,
		macro:              deps.Macro,
		engineer:           deps.Engineer,
		generator:          deps.Generator,
		checker:            deps.Checker,
		engine:             deps.Engine,
		scorer:             deps.Scorer,
		evaluator:          deps.Evaluator,
		riskScorer:         deps.RiskScorer,
		selector:           deps.Selector,
		runRepo:            deps.RunRepo,
		snapshotRepo:       deps.SnapshotRepo,
		candidateRepo:      deps.CandidateRepo,
		rationale:          deps.Rationale,
		maxParallelSymbols: maxParallel,
		logger:             log,
	}
}

// Result holds the outcome of a complete pipeline run
type Result struct {
	Run      *contracts.Run
	Selected []*contracts.Candidate
	Summary  *contracts.RunSummary
}

// Run executes the pipeline S0 → S8. 심볼 단위 실패는 에러 목록에 쌓이고
// 런은 계속된다. 런은 부분 실패와 무관하게 항상 닫힌다.
func (o *Orchestrator) Run(ctx context.Context, symbols []string, mode contracts.RunMode, policyID string) (*Result, error) {
	startTime := time.Now()

	run := &contracts.Run{
		ID:        contracts.NewRunID(),
		Mode:      mode,
		Symbols:   symbols,
		PolicyID:  policyID,
		AsOf:      startTime,
		StartedAt: startTime,
	}
	state := NewState(run)

	o.logger.WithFields(map[string]interface{}{
		"run_id":  run.ID,
		"mode":    mode,
		"symbols": len(symbols),
		"policy":  policyID,
	}).Info("Starting pipeline run")

	if o.runRepo != nil {
		if err := o.runRepo.OpenRun(ctx, run); err != nil {
			o.logger.WithError(err).Warn("Failed to open run record, continuing")
		}
	}

	result := &Result{Run: run}

	// 런은 항상 닫힌다 — 부분 실패 포함
	defer func() {
		result.Summary = o.closeRun(ctx, state, startTime)
	}()

	o.runS0(ctx, state, policyID)
	o.runS1(ctx, state)
	o.runS2(ctx, state)
	o.runS3(ctx, state)
	o.runS4(ctx, state)
	o.runS5(ctx, state)
	o.runS6(ctx, state)
	o.runS7(ctx, state)
	o.runS8(ctx, state)

	result.Selected = state.Selected

	o.logger.WithFields(map[string]interface{}{
		"run_id":     run.ID,
		"candidates": len(state.Candidates),
		"selected":   len(state.Selected),
		"errors":     len(run.Errors),
		"duration":   time.Since(startTime).Seconds(),
	}).Info("Pipeline run completed")

	return result, nil
}

// runS0 loads the policy; any load failure degrades to the unweighted
// default policy. 절대 다른 저장 정책으로 대체하지 않는다.
func (o *Orchestrator) runS0(ctx context.Context, state *State, policyID string) {
	start := time.Now()
	o.logger.Info("Running S0: Policy Load")

	pol, err := o.policyLoader.Load(ctx, policyID)
	if err != nil {
		state.AddError(contracts.StagePolicy, "", fmt.Errorf("policy %s: %w", policyID, err))
		pol = policy.DefaultFactors()
		state.Run.PolicyFallback = true
		o.logger.WithError(err).Warn("Policy load failed, falling back to default factors")
	}
	state.Policy = pol

	state.RecordStage(contracts.StageResult{
		Stage:       contracts.StagePolicy,
		Success:     err == nil,
		OutputCount: len(pol.Enabled()),
		DurationMS:  time.Since(start).Milliseconds(),
	})
}

// runS1 fetches chain/quote/fundamentals per symbol with bounded fan-out.
// 심볼 X의 실패가 심볼 Y의 수집을 막지 않는다.
func (o *Orchestrator) runS1(ctx context.Context, state *State) {
	start := time.Now()
	o.logger.Info("Running S1: Market Data")

	var wg sync.WaitGroup
	slots := make(chan struct{}, o.maxParallelSymbols)

	for _, symbol := range state.Run.Symbols {
		wg.Add(1)
		slots <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-slots }()

			chain, err := o.chains.FetchChain(ctx, symbol)
			if err != nil {
				state.AddError(contracts.StageMarket, symbol, fmt.Errorf("fetch chain: %w", err))
				chain = nil
			}

			quote, err := o.quotes.FetchQuote(ctx, symbol)
			if err != nil {
				state.AddError(contracts.StageMarket, symbol, fmt.Errorf("fetch quote: %w", err))
				quote = nil
			}

			fund, err := o.fundamentals.FetchOverview(ctx, symbol)
			if err != nil {
				// 펀더멘털은 보조 데이터 — 없이도 진행
				state.AddError(contracts.StageMarket, symbol, fmt.Errorf("fetch overview: %w", err))
				fund = nil
			}

			state.MergeMarket(symbol, chain, quote, fund)

			if chain != nil && o.snapshotRepo != nil {
				if err := o.snapshotRepo.SaveContracts(ctx, state.Run.ID, chain); err != nil {
					o.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to persist chain snapshot")
				}
			}
		}(symbol)
	}
	wg.Wait()

	state.RecordStage(contracts.StageResult{
		Stage:       contracts.StageMarket,
		Success:     len(state.Chains) > 0,
		InputCount:  len(state.Run.Symbols),
		OutputCount: len(state.Chains),
		DurationMS:  time.Since(start).Milliseconds(),
	})
	o.logger.WithFields(map[string]interface{}{
		"symbols": len(state.Run.Symbols),
		"chains":  len(state.Chains),
	}).Info("S1 completed")
}

// runS2 fetches macro series. 전체 실패해도 런은 계속된다 (레짐 unknown).
func (o *Orchestrator) runS2(ctx context.Context, state *State) {
	start := time.Now()
	o.logger.Info("Running S2: Macro Data")

	series, err := o.macro.FetchSeries(ctx, defaultMacroSeries)
	if err != nil {
		state.AddError(contracts.StageMacro, "", fmt.Errorf("fetch macro series: %w", err))
		series = nil
	}
	state.MacroSeries = series

	state.RecordStage(contracts.StageResult{
		Stage:       contracts.StageMacro,
		Success:     err == nil,
		InputCount:  len(defaultMacroSeries),
		OutputCount: len(series),
		DurationMS:  time.Since(start).Milliseconds(),
	})
}

// runS3 derives per-symbol features
func (o *Orchestrator) runS3(ctx context.Context, state *State) {
	start := time.Now()
	o.logger.Info("Running S3: Feature Engineering")

	for _, symbol := range state.Run.Symbols {
		feats := o.engineer.Derive(ctx, symbol,
			state.Chains[symbol], state.Quotes[symbol], state.Fundamentals[symbol], state.MacroSeries)
		state.Features[symbol] = feats

		if o.snapshotRepo != nil {
			if err := o.snapshotRepo.SaveFeatures(ctx, state.Run.ID, feats); err != nil {
				o.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to persist features")
			}
		}
	}

	state.RecordStage(contracts.StageResult{
		Stage:       contracts.StageFeatures,
		Success:     true,
		InputCount:  len(state.Run.Symbols),
		OutputCount: len(state.Features),
		DurationMS:  time.Since(start).Milliseconds(),
	})
}

// runS4 generates candidates per symbol, preserving generation order
func (o *Orchestrator) runS4(ctx context.Context, state *State) {
	start := time.Now()
	o.logger.Info("Running S4: Candidate Generation")

	for _, symbol := range state.Run.Symbols {
		chain := state.Chains[symbol]
		quote := state.Quotes[symbol]
		if chain == nil || quote == nil {
			continue // S1에서 이미 에러 기록됨
		}
		cands := o.generator.Generate(symbol, chain, quote.Price, state.Policy)
		state.Candidates = append(state.Candidates, cands...)
	}

	state.RecordStage(contracts.StageResult{
		Stage:       contracts.StageCandidates,
		Success:     true,
		InputCount:  len(state.Chains),
		OutputCount: len(state.Candidates),
		DurationMS:  time.Since(start).Milliseconds(),
	})
	o.logger.WithField("candidates", len(state.Candidates)).Info("S4 completed")
}

// runS5 checks guardrails per symbol and stamps flags onto candidates
func (o *Orchestrator) runS5(ctx context.Context, state *State) {
	start := time.Now()
	o.logger.Info("Running S5: Guardrails")

	bySymbol := make(map[string][]*contracts.Candidate)
	for _, c := range state.Candidates {
		bySymbol[c.Symbol] = append(bySymbol[c.Symbol], c)
	}

	for symbol, cands := range bySymbol {
		res := o.checker.Check(ctx, symbol, state.Features[symbol], state.Run.AsOf)
		state.Guardrails[symbol] = res
		o.checker.Apply(res, cands)
	}

	state.RecordStage(contracts.StageResult{
		Stage:       contracts.StageGuardrails,
		Success:     true,
		InputCount:  len(bySymbol),
		OutputCount: len(state.Guardrails),
		DurationMS:  time.Since(start).Milliseconds(),
	})
}

// runS6 runs deep reasoning per candidate and keeps the adjusted policy
// for S7 re-scoring.
func (o *Orchestrator) runS6(ctx context.Context, state *State) {
	start := time.Now()
	o.logger.Info("Running S6: Deep Reasoning")

	for _, cand := range state.Candidates {
		in := o.scoringInput(state, cand)
		adjusted := o.engine.Reason(ctx, cand, state.Policy, in)
		state.AdjustedPolicies[cand] = adjusted
	}

	state.RecordStage(contracts.StageResult{
		Stage:       contracts.StageReasoning,
		Success:     true,
		InputCount:  len(state.Candidates),
		OutputCount: len(state.Candidates),
		DurationMS:  time.Since(start).Milliseconds(),
	})
}

// runS7 re-scores compliance against the adjusted policy and computes the
// hard-gate evaluation and risk-adjusted score.
func (o *Orchestrator) runS7(ctx context.Context, state *State) {
	start := time.Now()
	o.logger.Info("Running S7: Quantitative Scoring")

	for _, cand := range state.Candidates {
		o.scoreCandidate(state, cand)
	}

	state.RecordStage(contracts.StageResult{
		Stage:       contracts.StageScoring,
		Success:     true,
		InputCount:  len(state.Candidates),
		OutputCount: len(state.Candidates),
		DurationMS:  time.Since(start).Milliseconds(),
	})
}

// scoreCandidate scores one candidate against its adjusted policy.
// 후보 하나의 패닉은 중립 점수(50, REVIEW)로 흡수하고 런은 계속된다.
func (o *Orchestrator) scoreCandidate(state *State, cand *contracts.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.WithFields(map[string]interface{}{
				"symbol": cand.Symbol,
				"panic":  fmt.Sprint(r),
			}).Error("Scoring panicked, assigning neutral score")
			state.AddError(contracts.StageScoring, cand.Symbol, fmt.Errorf("scoring panic: %v", r))

			cand.Compliance = &contracts.ComplianceResult{Score: 50}
			cand.Evaluation = nil
			cand.RiskScore = nil
			if cand.Reasoning == nil {
				cand.Reasoning = &contracts.ReasoningChain{BaselineScore: 50, AdjustedScore: 50}
			}
			cand.Reasoning.Recommendation = contracts.RecommendReview
			cand.Reasoning.Error = fmt.Sprintf("scoring panic: %v", r)
		}
	}()

	in := o.scoringInput(state, cand)

	adjusted := state.AdjustedPolicies[cand]
	if adjusted == nil {
		adjusted = state.Policy
	}
	cand.Compliance = o.scorer.Score(adjusted, in)

	o.evaluator.Evaluate(cand, state.Features[cand.Symbol])
	o.riskScorer.Score(cand)
}

// runS8 selects the final shortlist and persists it best-effort
func (o *Orchestrator) runS8(ctx context.Context, state *State) {
	start := time.Now()
	o.logger.Info("Running S8: Selection")

	state.Selected = o.selector.Select(state.Candidates)

	if o.candidateRepo != nil {
		if err := o.candidateRepo.SaveCandidates(ctx, state.Run.ID, state.Candidates); err != nil {
			o.logger.WithError(err).Warn("Failed to persist candidates")
		}
		if err := o.candidateRepo.SaveSelection(ctx, state.Run.ID, state.Selected); err != nil {
			o.logger.WithError(err).Warn("Failed to persist selection")
		}
	}

	if o.rationale != nil && len(state.Selected) > 0 {
		if err := o.rationale.WriteRationale(ctx, state.Run.ID, state.Selected); err != nil {
			o.logger.WithError(err).Warn("Rationale writer failed, selection unaffected")
		}
	}

	state.RecordStage(contracts.StageResult{
		Stage:       contracts.StageSelection,
		Success:     true,
		InputCount:  len(state.Candidates),
		OutputCount: len(state.Selected),
		DurationMS:  time.Since(start).Milliseconds(),
	})
	o.logger.WithField("selected", len(state.Selected)).Info("S8 completed")
}

// scoringInput assembles the factor-extraction input for one candidate
func (o *Orchestrator) scoringInput(state *State, cand *contracts.Candidate) policy.Input {
	in := policy.Input{
		Candidate:    cand,
		Features:     state.Features[cand.Symbol],
		Fundamentals: state.Fundamentals[cand.Symbol],
		Quote:        state.Quotes[cand.Symbol],
		MacroSeries:  state.MacroSeries,
	}
	if gr := state.Guardrails[cand.Symbol]; gr != nil {
		in.Headlines = gr.Headlines
	}
	return in
}

// closeRun persists the run summary. 실패는 로깅만 한다.
func (o *Orchestrator) closeRun(ctx context.Context, state *State, startTime time.Time) *contracts.RunSummary {
	now := time.Now()
	state.Run.ClosedAt = &now

	summary := &contracts.RunSummary{
		RunID:          state.Run.ID,
		CandidateCount: len(state.Candidates),
		SelectedCount:  len(state.Selected),
		ErrorCount:     len(state.Run.Errors),
		Stages:         state.StageResults,
		Duration:       now.Sub(startTime),
	}

	if o.runRepo != nil {
		// 에러 목록 저장은 선택 기능 — 구현체가 지원할 때만
		type errorRecorder interface {
			AppendErrors(ctx context.Context, runID string, stageErrors []contracts.StageError) error
		}
		if rec, ok := o.runRepo.(errorRecorder); ok && len(state.Run.Errors) > 0 {
			if err := rec.AppendErrors(ctx, state.Run.ID, state.Run.Errors); err != nil {
				o.logger.WithError(err).Warn("Failed to persist run errors")
			}
		}
		if err := o.runRepo.CloseRun(ctx, state.Run.ID, summary); err != nil {
			o.logger.WithError(err).Warn("Failed to close run record")
		}
	}
	return summary
}
