package guardrails

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/pkg/logger"
)

// stubResearch routes queries by substring. 미등록 쿼리는 빈 결과.
type stubResearch struct {
	earnings []contracts.Headline
	macro    []contracts.Headline
	news     []contracts.Headline
	errOn    string // 이 부분 문자열이 포함된 쿼리는 항상 실패
}

func (s *stubResearch) Search(_ context.Context, query string, _, _ int) ([]contracts.Headline, error) {
	if s.errOn != "" && strings.Contains(query, s.errOn) {
		return nil, errors.New("search backend unavailable")
	}
	switch {
	case strings.Contains(query, "earnings"):
		return s.earnings, nil
	case strings.Contains(query, "FOMC"):
		return s.macro, nil
	default:
		return s.news, nil
	}
}

func newsAt(asOf time.Time, daysAgo ...int) []contracts.Headline {
	var out []contracts.Headline
	for _, d := range daysAgo {
		out = append(out, contracts.Headline{Title: "NVDA stock news", PublishedAt: asOf.AddDate(0, 0, -d)})
	}
	return out
}

func newTestChecker(r contracts.ResearchProvider) *Checker {
	return NewChecker(DefaultCheckerConfig(), r, logger.NewNop())
}

func TestChecker_FlagsEarningsAndMacroRisk(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	c := newTestChecker(&stubResearch{
		earnings: []contracts.Headline{{Title: "NVDA earnings date confirmed"}},
		macro:    []contracts.Headline{{Title: "FOMC decision Wednesday"}},
	})

	result := c.Check(context.Background(), "NVDA", nil, asOf)

	assert.True(t, result.Flags[FlagEarningsRisk])
	assert.True(t, result.Flags[FlagMacroEventRisk])
	assert.False(t, result.Flags[FlagNewsSpike])
}

func TestChecker_NewsSpikeFlagAndFeatureBackfill(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	// 최근 7일에 몰린 헤드라인 → z > 2
	c := newTestChecker(&stubResearch{
		news: newsAt(asOf, 1, 1, 2, 3, 4, 5, 6, 40, 70),
	})
	feats := &contracts.SymbolFeatures{Symbol: "NVDA"}

	result := c.Check(context.Background(), "NVDA", feats, asOf)

	assert.True(t, result.Flags[FlagNewsSpike])
	require.NotNil(t, result.NewsZ)
	assert.Greater(t, *result.NewsZ, 2.0)
	assert.Len(t, result.Headlines, 9)

	// 피처에도 기록
	assert.Equal(t, 7, feats.NewsCount7D)
	assert.Equal(t, 9, feats.NewsCount90D)
	require.NotNil(t, feats.NewsZScore)
}

func TestChecker_SearchFailureIsFailOpen(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	// 실적 검색만 실패해도 나머지 쿼리는 계속 진행
	c := newTestChecker(&stubResearch{
		errOn: "earnings",
		macro: []contracts.Headline{{Title: "CPI release Friday"}},
	})

	result := c.Check(context.Background(), "NVDA", nil, asOf)

	assert.False(t, result.Flags[FlagEarningsRisk], "failed query must leave the flag unset")
	assert.True(t, result.Flags[FlagMacroEventRisk])
}

func TestChecker_AllSearchesFailingStillReturnsResult(t *testing.T) {
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	c := newTestChecker(&stubResearch{errOn: "NVDA"})
	// 매크로 쿼리는 심볼이 없어 성공하지만 결과가 비어 있음

	result := c.Check(context.Background(), "NVDA", nil, asOf)

	require.NotNil(t, result)
	assert.False(t, result.Flags[FlagEarningsRisk])
	assert.False(t, result.Flags[FlagMacroEventRisk])
	assert.False(t, result.Flags[FlagNewsSpike])
	assert.Nil(t, result.NewsZ)
}

func TestChecker_ApplyCopiesFlagsToCandidates(t *testing.T) {
	c := newTestChecker(&stubResearch{})
	result := &SymbolResult{Flags: map[string]bool{
		FlagEarningsRisk:   true,
		FlagMacroEventRisk: false,
		FlagNewsSpike:      true,
	}}
	cands := []*contracts.Candidate{
		{Symbol: "NVDA", Guardrails: make(map[string]bool)},
		{Symbol: "NVDA"}, // 맵 미초기화여도 동작
	}

	c.Apply(result, cands)

	for _, cand := range cands {
		assert.True(t, cand.Guardrails[FlagEarningsRisk])
		assert.False(t, cand.Guardrails[FlagMacroEventRisk])
		assert.True(t, cand.Guardrails[FlagNewsSpike])
		require.Len(t, cand.Diagnostics, 1)
		assert.Equal(t, "guardrail_flags", cand.Diagnostics[0].Key)
	}
}
