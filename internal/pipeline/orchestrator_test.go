package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vertex/internal/candidates"
	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/internal/evaluation"
	"github.com/wonny/vertex/internal/features"
	"github.com/wonny/vertex/internal/guardrails"
	"github.com/wonny/vertex/internal/history"
	"github.com/wonny/vertex/internal/policy"
	"github.com/wonny/vertex/internal/reasoning"
	"github.com/wonny/vertex/internal/riskscore"
	"github.com/wonny/vertex/internal/selection"
	"github.com/wonny/vertex/pkg/logger"
)

// --- mock collaborators ---

type mockPolicyLoader struct {
	pol *contracts.Policy
	err error
}

func (m *mockPolicyLoader) Load(_ context.Context, _ string) (*contracts.Policy, error) {
	return m.pol, m.err
}

// mockMarket serves chain/quote/fundamentals per symbol, failing the
// symbols listed in fail.
type mockMarket struct {
	fail map[string]bool
}

func putLeg(strike float64, expiry time.Time, delta, bid, ask float64) contracts.ContractLeg {
	return contracts.ContractLeg{
		Strike:       strike,
		Expiry:       expiry,
		Right:        contracts.RightPut,
		Bid:          bid,
		Ask:          ask,
		Delta:        delta,
		Theta:        -0.05,
		Vega:         0.10,
		IV:           0.22,
		OpenInterest: 1500,
		Volume:       800,
	}
}

func (m *mockMarket) FetchChain(_ context.Context, symbol string) (*contracts.OptionChain, error) {
	if m.fail[symbol] {
		return nil, errors.New("provider timeout")
	}
	now := time.Now()
	expiry := now.AddDate(0, 0, 10)
	return &contracts.OptionChain{
		Symbol: symbol,
		AsOf:   now,
		Contracts: []contracts.ContractLeg{
			putLeg(470, expiry, -0.160, 2.60, 2.70),
			putLeg(465, expiry, -0.135, 1.75, 1.85),
			putLeg(460, expiry, -0.125, 1.10, 1.20),
			putLeg(455, expiry, -0.090, 0.75, 0.85),
			putLeg(450, expiry, -0.070, 0.50, 0.60),
			putLeg(445, expiry, -0.050, 0.30, 0.40),
		},
	}, nil
}

func (m *mockMarket) FetchQuote(_ context.Context, symbol string) (*contracts.Quote, error) {
	if m.fail[symbol] {
		return nil, errors.New("provider timeout")
	}
	return &contracts.Quote{Symbol: symbol, Price: 480, AsOf: time.Now()}, nil
}

func (m *mockMarket) FetchOverview(_ context.Context, symbol string) (*contracts.Fundamentals, error) {
	if m.fail[symbol] {
		return nil, errors.New("provider timeout")
	}
	return &contracts.Fundamentals{Symbol: symbol, MA50: 460, Week52High: 500, Week52Low: 400}, nil
}

type mockMacro struct{ err error }

func (m *mockMacro) FetchSeries(_ context.Context, ids []string) (map[string]contracts.MacroSeries, error) {
	if m.err != nil {
		return nil, m.err
	}
	return map[string]contracts.MacroSeries{}, nil
}

type mockResearch struct{}

func (mockResearch) Search(_ context.Context, _ string, _, _ int) ([]contracts.Headline, error) {
	return nil, nil
}

type mockOutcomes struct{}

func (mockOutcomes) QueryClosedTrades(_ context.Context, _ string, _ int) ([]contracts.TradeOutcome, error) {
	return nil, nil
}

// mockRunRepo records lifecycle calls; AppendErrors makes it an error
// recorder like the postgres implementation.
type mockRunRepo struct {
	mu           sync.Mutex
	opened       *contracts.Run
	closedWith   *contracts.RunSummary
	storedErrors []contracts.StageError
}

func (m *mockRunRepo) OpenRun(_ context.Context, run *contracts.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = run
	return nil
}

func (m *mockRunRepo) CloseRun(_ context.Context, _ string, summary *contracts.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closedWith = summary
	return nil
}

func (m *mockRunRepo) AppendErrors(_ context.Context, _ string, stageErrors []contracts.StageError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storedErrors = append(m.storedErrors, stageErrors...)
	return nil
}

func (m *mockRunRepo) GetRun(_ context.Context, _ string) (*contracts.Run, *contracts.RunSummary, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockRunRepo) ListRuns(_ context.Context, _ int) ([]contracts.Run, error) {
	return nil, nil
}

type mockCandidateRepo struct {
	savedCandidates int
	savedSelection  int
}

func (m *mockCandidateRepo) SaveCandidates(_ context.Context, _ string, cands []*contracts.Candidate) error {
	m.savedCandidates = len(cands)
	return nil
}

func (m *mockCandidateRepo) SaveSelection(_ context.Context, _ string, selected []*contracts.Candidate) error {
	m.savedSelection = len(selected)
	return nil
}

func (m *mockCandidateRepo) GetSelection(_ context.Context, _ string) ([]*contracts.Candidate, error) {
	return nil, nil
}

// --- helpers ---

func newTestOrchestrator(loader contracts.PolicyLoader, market *mockMarket, macro *mockMacro, runRepo contracts.RunRepository, candRepo contracts.CandidateRepository) *Orchestrator {
	return newTestOrchestratorWith(policy.NewRegistry(), loader, market, macro, runRepo, candRepo)
}

func newTestOrchestratorWith(registry *policy.Registry, loader contracts.PolicyLoader, market *mockMarket, macro *mockMacro, runRepo contracts.RunRepository, candRepo contracts.CandidateRepository) *Orchestrator {
	log := logger.NewNop()
	scorer := policy.NewScorer(registry, log)
	analyzer := history.NewAnalyzer(mockOutcomes{}, log)

	return NewOrchestrator(Deps{
		PolicyLoader: loader,
		Chains:       market,
		Quotes:       market,
		Fundamentals: market,
		Macro:        macro,

		Engineer:   features.NewEngineer(log),
		Generator:  candidates.NewGenerator(candidates.DefaultGeneratorConfig(), log),
		Checker:    guardrails.NewChecker(guardrails.DefaultCheckerConfig(), mockResearch{}, log),
		Engine:     reasoning.NewEngine(scorer, analyzer, log),
		Scorer:     scorer,
		Evaluator:  evaluation.NewEvaluator(evaluation.DefaultEvaluatorConfig(), log),
		RiskScorer: riskscore.NewScorer(riskscore.DefaultScorerConfig(), log),
		Selector:   selection.NewSelector(selection.DefaultSelectorConfig(), log),

		RunRepo:       runRepo,
		CandidateRepo: candRepo,

		MaxParallelSymbols: 2,
	}, log)
}

// --- tests ---

func TestOrchestrator_HappyPath(t *testing.T) {
	runRepo := &mockRunRepo{}
	candRepo := &mockCandidateRepo{}
	o := newTestOrchestrator(
		&mockPolicyLoader{pol: policy.DefaultFactors()},
		&mockMarket{}, &mockMacro{}, runRepo, candRepo)

	result, err := o.Run(context.Background(), []string{"SPY"}, contracts.ModePaper, "default")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.Selected, "a clean ladder must yield selected candidates")
	require.NotNil(t, result.Summary)
	assert.Len(t, result.Summary.Stages, 9, "every stage records a result")
	assert.Zero(t, result.Summary.ErrorCount)
	assert.False(t, result.Run.PolicyFallback)
	require.NotNil(t, result.Run.ClosedAt)

	// 선정 결과에는 순위/그룹/사유가 붙는다
	for i, c := range result.Selected {
		require.NotNil(t, c.Selection)
		assert.Equal(t, i+1, c.Selection.Rank)
		assert.NotEmpty(t, c.Selection.Reason)
		require.NotNil(t, c.Reasoning)
		require.NotNil(t, c.Compliance)
	}

	// 영속화 호출 확인
	require.NotNil(t, runRepo.opened)
	require.NotNil(t, runRepo.closedWith)
	assert.Equal(t, result.Summary.CandidateCount, candRepo.savedCandidates)
	assert.Equal(t, len(result.Selected), candRepo.savedSelection)
}

func TestOrchestrator_SymbolFailureDoesNotBlockOthers(t *testing.T) {
	runRepo := &mockRunRepo{}
	o := newTestOrchestrator(
		&mockPolicyLoader{pol: policy.DefaultFactors()},
		&mockMarket{fail: map[string]bool{"BAD": true}},
		&mockMacro{}, runRepo, nil)

	result, err := o.Run(context.Background(), []string{"BAD", "SPY"}, contracts.ModePaper, "default")
	require.NoError(t, err)

	assert.NotEmpty(t, result.Selected, "healthy symbol must still produce candidates")
	for _, c := range result.Selected {
		assert.Equal(t, "SPY", c.Symbol)
	}

	// BAD의 수집 실패는 에러 목록에 남고 저장소로 전달된다
	assert.NotEmpty(t, result.Run.Errors)
	for _, e := range result.Run.Errors {
		assert.Equal(t, "BAD", e.Symbol)
		assert.Equal(t, contracts.StageMarket, e.Stage)
	}
	assert.Equal(t, len(result.Run.Errors), len(runRepo.storedErrors))
}

func TestOrchestrator_PolicyLoadFailureFallsBackToDefaults(t *testing.T) {
	o := newTestOrchestrator(
		&mockPolicyLoader{err: contracts.ErrPolicyNotFound},
		&mockMarket{}, &mockMacro{}, nil, nil)

	result, err := o.Run(context.Background(), []string{"SPY"}, contracts.ModePaper, "missing")
	require.NoError(t, err)

	assert.True(t, result.Run.PolicyFallback)
	assert.NotEmpty(t, result.Selected, "default factors must keep the run productive")

	// 폴백은 에러로도 기록된다
	require.NotEmpty(t, result.Run.Errors)
	assert.Equal(t, contracts.StagePolicy, result.Run.Errors[0].Stage)

	// 폴백 정책으로 채점되었음이 컴플라이언스에 표시된다
	for _, c := range result.Selected {
		require.NotNil(t, c.Compliance)
		assert.True(t, c.Compliance.Fallback)
	}
}

func TestOrchestrator_RunAlwaysClosesOnTotalFailure(t *testing.T) {
	runRepo := &mockRunRepo{}
	o := newTestOrchestrator(
		&mockPolicyLoader{err: errors.New("db down")},
		&mockMarket{fail: map[string]bool{"SPY": true, "QQQ": true}},
		&mockMacro{err: errors.New("fred unavailable")},
		runRepo, nil)

	result, err := o.Run(context.Background(), []string{"SPY", "QQQ"}, contracts.ModePaper, "default")
	require.NoError(t, err)

	assert.Empty(t, result.Selected)
	require.NotNil(t, result.Summary)
	assert.Greater(t, result.Summary.ErrorCount, 0)
	require.NotNil(t, result.Run.ClosedAt, "run must close even when everything fails")
	require.NotNil(t, runRepo.closedWith)
	assert.Equal(t, result.Summary.ErrorCount, len(runRepo.storedErrors))
}

func TestOrchestrator_ScoringPanicYieldsNeutralReview(t *testing.T) {
	// 팩터 추출기 하나가 패닉해도 런은 호출자에게 죽지 않는다 — 해당
	// 후보는 중립 점수(50, REVIEW)로 내려가고 스테이지 에러가 남는다
	registry := policy.NewRegistry()
	registry.Register("delta", func(policy.Input) *float64 { panic("extractor corrupted") })

	runRepo := &mockRunRepo{}
	o := newTestOrchestratorWith(registry,
		&mockPolicyLoader{pol: policy.DefaultFactors()},
		&mockMarket{}, &mockMacro{}, runRepo, nil)

	var result *Result
	require.NotPanics(t, func() {
		var err error
		result, err = o.Run(context.Background(), []string{"SPY"}, contracts.ModePaper, "default")
		require.NoError(t, err)
	})

	require.NotNil(t, result.Summary)
	assert.Greater(t, result.Summary.CandidateCount, 0)
	require.NotNil(t, result.Run.ClosedAt, "run must close despite per-candidate panics")

	scoringErrs := 0
	for _, e := range result.Run.Errors {
		if e.Stage == contracts.StageScoring {
			scoringErrs++
		}
	}
	assert.Equal(t, result.Summary.CandidateCount, scoringErrs,
		"each candidate's scoring panic is recorded as a stage error")

	require.NotEmpty(t, result.Selected, "neutral candidates still flow into selection")
	for _, c := range result.Selected {
		require.NotNil(t, c.Compliance)
		assert.Equal(t, 50.0, c.Compliance.Score)
		require.NotNil(t, c.Reasoning)
		assert.Equal(t, contracts.RecommendReview, c.Reasoning.Recommendation)
		assert.Contains(t, c.Reasoning.Error, "scoring panic")
		assert.Nil(t, c.Evaluation)
		assert.Nil(t, c.RiskScore)
	}
}

func TestOrchestrator_MacroFailureLeavesRegimeUnknown(t *testing.T) {
	o := newTestOrchestrator(
		&mockPolicyLoader{pol: policy.DefaultFactors()},
		&mockMarket{}, &mockMacro{err: errors.New("fred unavailable")}, nil, nil)

	result, err := o.Run(context.Background(), []string{"SPY"}, contracts.ModePaper, "default")
	require.NoError(t, err)

	assert.NotEmpty(t, result.Selected, "macro data is optional")
	require.NotEmpty(t, result.Run.Errors)
	assert.Equal(t, contracts.StageMacro, result.Run.Errors[0].Stage)
}
