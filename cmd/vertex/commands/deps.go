package commands

import (
	"fmt"

	"github.com/wonny/vertex/internal/candidates"
	"github.com/wonny/vertex/internal/evaluation"
	"github.com/wonny/vertex/internal/external/macro"
	"github.com/wonny/vertex/internal/external/marketdata"
	"github.com/wonny/vertex/internal/external/research"
	"github.com/wonny/vertex/internal/features"
	"github.com/wonny/vertex/internal/guardrails"
	"github.com/wonny/vertex/internal/history"
	"github.com/wonny/vertex/internal/persistence"
	"github.com/wonny/vertex/internal/pipeline"
	"github.com/wonny/vertex/internal/policy"
	"github.com/wonny/vertex/internal/reasoning"
	"github.com/wonny/vertex/internal/riskscore"
	"github.com/wonny/vertex/internal/selection"
	"github.com/wonny/vertex/pkg/config"
	"github.com/wonny/vertex/pkg/database"
	"github.com/wonny/vertex/pkg/gateway"
	"github.com/wonny/vertex/pkg/logger"
	"github.com/wonny/vertex/pkg/redis"
)

// appDeps bundles everything a command needs
type appDeps struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	cache *redis.Client
	orch  *pipeline.Orchestrator
	runs  *persistence.RunRepository
	cands *persistence.CandidateRepository
}

// buildDeps wires the full dependency graph shared by the commands.
// ⭐ SSOT: 의존성 조립은 여기서만
func buildDeps() (*appDeps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "vertex")

	// 공유 리미터: 동시 호출 수와 호출 간격 제한
	limiter := gateway.NewLimiter(cfg.Gateway.MaxInFlight, cfg.Gateway.CallsPerSecond)
	gw := gateway.New(cfg, limiter, log)

	marketClient := marketdata.NewClient(cfg, gw, cache, log)
	macroClient := macro.NewClient(cfg, gw, cache, log)
	researchClient := research.NewClient(cfg, gw, log)

	runRepo := persistence.NewRunRepository(db)
	candidateRepo := persistence.NewCandidateRepository(db)
	snapshotRepo := persistence.NewSnapshotRepository(db)
	outcomeRepo := persistence.NewOutcomeRepository(db)
	policyRepo := persistence.NewPolicyRepository(db)

	registry := policy.NewRegistry()
	scorer := policy.NewScorer(registry, log)
	analyzer := history.NewAnalyzer(outcomeRepo, log)

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		PolicyLoader: policyRepo,
		Chains:       marketClient,
		Quotes:       marketClient,
		Fundamentals: marketClient,
		Macro:        macroClient,

		Engineer:   features.NewEngineer(log),
		Generator:  candidates.NewGenerator(candidates.DefaultGeneratorConfig(), log),
		Checker:    guardrails.NewChecker(guardrails.DefaultCheckerConfig(), researchClient, log),
		Engine:     reasoning.NewEngine(scorer, analyzer, log),
		Scorer:     scorer,
		Evaluator:  evaluation.NewEvaluator(evaluation.DefaultEvaluatorConfig(), log),
		RiskScorer: riskscore.NewScorer(riskscore.DefaultScorerConfig(), log),
		Selector:   selection.NewSelector(selection.DefaultSelectorConfig(), log),

		RunRepo:       runRepo,
		SnapshotRepo:  snapshotRepo,
		CandidateRepo: candidateRepo,

		MaxParallelSymbols: cfg.Gateway.MaxInFlight,
	}, log)

	cleanup := func() {
		redisClient.Close()
		db.Close()
	}

	return &appDeps{
		cfg:   cfg,
		log:   log,
		db:    db,
		cache: redisClient,
		orch:  orch,
		runs:  runRepo,
		cands: candidateRepo,
	}, cleanup, nil
}
