package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vertex",
	Short: "Vertex - 크레딧 스프레드 후보 생성/채점 파이프라인",
	Long: `Vertex Unified CLI

옵션 체인/시세/매크로 데이터를 수집해 크레딧 스프레드 후보를 생성하고,
투자 정책(IPS) 적합도와 리스크 조정 점수로 최종 Top-K를 선정한다.

Usage:
  go run ./cmd/vertex [command]

Examples:
  go run ./cmd/vertex scan --symbols SPY,QQQ --policy default
  go run ./cmd/vertex api
  go run ./cmd/vertex policy show default`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
