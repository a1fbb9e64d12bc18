package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/internal/persistence"
	"github.com/wonny/vertex/internal/pipeline"
)

// scanCmd runs one full pipeline scan
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "파이프라인 실행 (S0→S8)",
	Long: `심볼 목록에 대해 전체 후보 생성/채점 파이프라인을 실행한다.

이 명령어는:
- 정책 로드 (실패 시 기본 정책 폴백)
- 시장/매크로 데이터 수집 (레이트 리미터 경유)
- 후보 생성 → 가드레일 → 리즈닝 → 채점 → 최종 선정

Example:
  go run ./cmd/vertex scan --symbols SPY,QQQ --policy default
  go run ./cmd/vertex scan --symbols IWM --mode paper`,
	RunE: runScan,
}

var (
	scanSymbols string
	scanMode    string
	scanPolicy  string
	scanTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanSymbols, "symbols", "", "쉼표로 구분한 심볼 목록 (필수)")
	scanCmd.Flags().StringVar(&scanMode, "mode", string(contracts.ModePaper), "런 모드 (backtest|paper|live)")
	scanCmd.Flags().StringVar(&scanPolicy, "policy", "default", "정책 ID")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 10*time.Minute, "런 전체 타임아웃")
	scanCmd.MarkFlagRequired("symbols")
}

func runScan(cmd *cobra.Command, args []string) error {
	if !contracts.IsValidMode(scanMode) {
		return fmt.Errorf("invalid mode %q (backtest|paper|live)", scanMode)
	}

	symbols := splitSymbols(scanSymbols)
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols given")
	}

	deps, cleanup, err := buildDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	if err := persistence.Migrate(ctx, deps.db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	result, err := deps.orch.Run(ctx, symbols, contracts.RunMode(scanMode), scanPolicy)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	printResult(result)
	return nil
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func printResult(result *pipeline.Result) {
	fmt.Printf("\n=== Run %s ===\n", result.Run.ID)
	if result.Run.PolicyFallback {
		fmt.Println("(scored with the default fallback policy)")
	}
	fmt.Printf("candidates: %d, selected: %d, errors: %d\n\n",
		result.Summary.CandidateCount, result.Summary.SelectedCount, result.Summary.ErrorCount)

	for _, c := range result.Selected {
		sel := c.Selection
		fmt.Printf("#%d [%s] %s %s %.0f/%.0f exp %s  credit %.2f  fit %.1f\n",
			sel.Rank, sel.Group, c.Symbol, c.Strategy,
			c.Short.Strike, c.Long.Strike, c.Expiry.Format("2006-01-02"),
			c.Credit, sel.BlendedScore)
		fmt.Printf("    %s\n", sel.Reason)
		if len(sel.FailingFactors) > 0 {
			fmt.Printf("    failing: %s\n", strings.Join(sel.FailingFactors, ", "))
		}
	}

	if len(result.Run.Errors) > 0 {
		fmt.Printf("\nerrors:\n")
		for _, e := range result.Run.Errors {
			fmt.Printf("  - %s\n", e.Error())
		}
	}
}
