package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/vertex/internal/contracts"
	"github.com/wonny/vertex/internal/persistence"
	"github.com/wonny/vertex/internal/policy"
)

// policyCmd groups policy inspection commands
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "투자 정책(IPS) 조회/등록",
}

// policyShowCmd prints one stored policy
var policyShowCmd = &cobra.Command{
	Use:   "show [policy-id]",
	Short: "정책 팩터 목록 출력",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyShow,
}

// policySeedCmd stores the built-in default factors under an id
var policySeedCmd = &cobra.Command{
	Use:   "seed [policy-id]",
	Short: "기본 팩터로 정책 생성",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicySeed,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policySeedCmd)
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	deps, cleanup, err := buildDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := persistence.NewPolicyRepository(deps.db)
	pol, err := repo.Load(ctx, args[0])
	if errors.Is(err, contracts.ErrPolicyNotFound) {
		fmt.Printf("policy %q not stored; the pipeline would fall back to the default factors:\n\n", args[0])
		pol = policy.DefaultFactors()
	} else if err != nil {
		return err
	}

	printPolicy(pol)
	return nil
}

func runPolicySeed(cmd *cobra.Command, args []string) error {
	deps, cleanup, err := buildDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := persistence.Migrate(ctx, deps.db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	pol := policy.DefaultFactors()
	pol.ID = args[0]
	pol.Name = fmt.Sprintf("Seeded defaults (%s)", args[0])
	pol.Fallback = false

	repo := persistence.NewPolicyRepository(deps.db)
	if err := repo.Save(ctx, pol); err != nil {
		return err
	}

	fmt.Printf("seeded policy %q with %d factors\n", pol.ID, len(pol.Factors))
	return nil
}

func printPolicy(pol *contracts.Policy) {
	fmt.Printf("=== %s (%s) ===\n", pol.Name, pol.ID)
	for _, f := range pol.Factors {
		state := " "
		if !f.Enabled {
			state = "✗"
		}
		target := "-"
		if f.Threshold != nil {
			target = fmt.Sprintf("%s %.4g", f.Direction, *f.Threshold)
			if f.ThresholdMax != nil {
				target = fmt.Sprintf("%s %.4g–%.4g", f.Direction, *f.Threshold, *f.ThresholdMax)
			}
		}
		fmt.Printf("%s %-24s w=%.2f  %s\n", state, f.Key, f.Weight, target)
	}
}
