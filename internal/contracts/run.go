package contracts

import (
	"fmt"
	"time"
)

// RunMode determines how a pipeline run is labeled and persisted
type RunMode string

const (
	ModeBacktest RunMode = "backtest"
	ModePaper    RunMode = "paper"
	ModeLive     RunMode = "live"
)

// IsValidMode checks a mode string
func IsValidMode(s string) bool {
	switch RunMode(s) {
	case ModeBacktest, ModePaper, ModeLive:
		return true
	}
	return false
}

// StageError is one non-fatal error collected during a run.
// 심볼 단위 실패는 런을 중단시키지 않고 여기에 쌓인다.
type StageError struct {
	Stage   Stage     `json:"stage"`
	Symbol  string    `json:"symbol,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// NewStageError builds a stage error from an underlying error
func NewStageError(stage Stage, symbol string, err error) StageError {
	return StageError{
		Stage:   stage,
		Symbol:  symbol,
		Message: err.Error(),
		At:      time.Now(),
	}
}

func (e StageError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Stage.ShortName(), e.Symbol, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage.ShortName(), e.Message)
}

// Run records one pipeline invocation
type Run struct {
	ID             string       `json:"id"`
	Mode           RunMode      `json:"mode"`
	Symbols        []string     `json:"symbols"`
	PolicyID       string       `json:"policy_id"`
	PolicyFallback bool         `json:"policy_fallback"`
	AsOf           time.Time    `json:"as_of"`
	StartedAt      time.Time    `json:"started_at"`
	ClosedAt       *time.Time   `json:"closed_at,omitempty"`
	Errors         []StageError `json:"errors,omitempty"`
}

// RunSummary is persisted when the run is closed, success or not
type RunSummary struct {
	RunID          string        `json:"run_id"`
	CandidateCount int           `json:"candidate_count"`
	SelectedCount  int           `json:"selected_count"`
	ErrorCount     int           `json:"error_count"`
	Stages         []StageResult `json:"stages"`
	Duration       time.Duration `json:"duration"`
}

// NewRunID generates a unique run id
func NewRunID() string {
	return fmt.Sprintf("run_%s", time.Now().Format("20060102_150405"))
}
