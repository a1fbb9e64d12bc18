package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 런 요약, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S3 → S4 → S5 → S6 → S7 → S8
//   Policy  Market  Macro  Features  Candidates  Guardrails  Reasoning  Scoring  Selection

// Stage represents a pipeline stage
type Stage string

const (
	// StagePolicy S0: 투자 정책(IPS) 로드
	// 책임: PolicyFactor 목록 로드, 실패 시 기본 정책 폴백
	// 위치: internal/policy/
	StagePolicy Stage = "S0_POLICY"

	// StageMarket S1: 시장 데이터 수집
	// 책임: 종목별 시세/옵션 체인/펀더멘털 수집 (게이트웨이 경유)
	// 위치: internal/external/marketdata/
	StageMarket Stage = "S1_MARKET"

	// StageMacro S2: 매크로 시계열 수집
	// 책임: 금리/물가 등 매크로 시리즈 수집
	// 위치: internal/external/macro/
	StageMacro Stage = "S2_MACRO"

	// StageFeatures S3: 종목별 피처 산출
	// 책임: 변동성 프록시, P/C 비율, 매크로 레짐 태그
	// 위치: internal/features/
	StageFeatures Stage = "S3_FEATURES"

	// StageCandidates S4: 스프레드 후보 생성
	// 책임: 버티컬 스프레드 조합 열거 + 구조 검증
	// 위치: internal/candidates/
	StageCandidates Stage = "S4_CANDIDATES"

	// StageGuardrails S5: 가드레일 체크
	// 책임: 실적 발표/매크로 이벤트 플래그, 뉴스 볼륨
	// 위치: internal/guardrails/
	StageGuardrails Stage = "S5_GUARDRAILS"

	// StageReasoning S6: 딥 리즈닝
	// 책임: 과거 성과 분석, 임계값 조정, 조정 점수/권고
	// 위치: internal/reasoning/
	StageReasoning Stage = "S6_REASONING"

	// StageScoring S7: 정량 평가
	// 책임: 하드 게이트/복합 점수, 정책 적합도 상세, 리스크 조정 점수
	// 위치: internal/evaluation/, internal/riskscore/, internal/policy/
	StageScoring Stage = "S7_SCORING"

	// StageSelection S8: 최종 선정
	// 책임: 2단 버킷 랭킹, Top-K 선정, 선정 사유
	// 위치: internal/selection/
	StageSelection Stage = "S8_SELECTION"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StagePolicy:
		return "S0"
	case StageMarket:
		return "S1"
	case StageMacro:
		return "S2"
	case StageFeatures:
		return "S3"
	case StageCandidates:
		return "S4"
	case StageGuardrails:
		return "S5"
	case StageReasoning:
		return "S6"
	case StageScoring:
		return "S7"
	case StageSelection:
		return "S8"
	default:
		return "UNKNOWN"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StagePolicy,
		StageMarket,
		StageMacro,
		StageFeatures,
		StageCandidates,
		StageGuardrails,
		StageReasoning,
		StageScoring,
		StageSelection,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// StageResult represents the result of a pipeline stage execution
type StageResult struct {
	Stage       Stage  `json:"stage"`
	Success     bool   `json:"success"`
	InputCount  int    `json:"input_count"`
	OutputCount int    `json:"output_count"`
	DurationMS  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
}
