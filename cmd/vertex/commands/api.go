package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vertex/internal/api"
	"github.com/wonny/vertex/internal/api/handlers"
	"github.com/wonny/vertex/internal/persistence"
)

// apiCmd starts the read-only results API server
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "결과 조회 API 서버 시작",
	Long: `런/선정 결과 조회용 REST API 서버를 시작한다.

Endpoints:
  GET /health                    - Health check
  GET /api/runs                  - 최근 런 목록
  GET /api/runs/{id}             - 런 상세 (요약 + 에러 목록)
  GET /api/runs/{id}/selection   - 최종 선정 후보

Example:
  go run ./cmd/vertex api
  go run ./cmd/vertex api --port 8090`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: API_PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	deps, cleanup, err := buildDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	if apiPort != "" {
		deps.cfg.APIPort = apiPort
	}

	ctx := context.Background()
	if err := persistence.Migrate(ctx, deps.db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	runHandler := handlers.NewRunHandler(deps.runs, deps.cands, deps.log)
	router := api.NewRouter(runHandler, deps.log)
	server := api.New(deps.cfg, deps.log, router)

	// Graceful shutdown on SIGINT/SIGTERM
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		deps.log.WithField("signal", sig.String()).Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
