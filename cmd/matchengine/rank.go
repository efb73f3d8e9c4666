package main

import (
	"fmt"

	"github.com/coderheist/rest.ai-sub000/internal/db"
	"github.com/coderheist/rest.ai-sub000/internal/matching"
	"github.com/coderheist/rest.ai-sub000/internal/observability"
	"github.com/coderheist/rest.ai-sub000/internal/scheduler"
	"github.com/coderheist/rest.ai-sub000/internal/scoring"
	"github.com/coderheist/rest.ai-sub000/internal/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Recompute candidate rankings",
	Long:  "Recomputes the rank of every match of a job and prints the ranked candidates and job statistics. With --all, refreshes every active job instead.",
	Args:  cobra.NoArgs,
	RunE:  runRank,
}

var (
	rankTenant string
	rankJob    string
	rankAll    bool
	rankLimit  int
)

func init() {
	rankCmd.Flags().StringVar(&rankTenant, "tenant", "", "Tenant ID")
	rankCmd.Flags().StringVar(&rankJob, "job", "", "Job ID")
	rankCmd.Flags().BoolVar(&rankAll, "all", false, "Refresh rankings for every active job")
	rankCmd.Flags().IntVar(&rankLimit, "limit", 10, "Number of ranked candidates to print")
	rootCmd.AddCommand(rankCmd)
}

// rankOutput is the --json shape of a single-job ranking.
type rankOutput struct {
	Ranked     int             `json:"ranked"`
	Candidates []types.Match   `json:"candidates"`
	Stats      *types.JobStats `json:"stats"`
}

func runRank(cmd *cobra.Command, _ []string) error {
	var tenantID, jobID uuid.UUID
	if !rankAll {
		if rankTenant == "" || rankJob == "" {
			return fmt.Errorf("--tenant and --job are required unless --all is set")
		}
		var err error
		if tenantID, err = uuid.Parse(rankTenant); err != nil {
			return fmt.Errorf("invalid tenant ID %q: %w", rankTenant, err)
		}
		if jobID, err = uuid.Parse(rankJob); err != nil {
			return fmt.Errorf("invalid job ID %q: %w", rankJob, err)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url (DATABASE_URL) is required")
	}

	logger := zap.NewNop()
	if cfg.Log.Debug {
		if logger, err = newLogger(cfg); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	ctx := cmd.Context()
	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	// ranking never scores, so the rule scorer is enough
	svc := matching.NewService(database, database, scoring.NewRuleScorer(cfg.Matching.Weights),
		matching.Options{Workers: cfg.Matching.Workers, Logger: logger})

	if rankAll {
		refreshed, err := scheduler.NewRankRefresher(database, svc, logger).RefreshAll(ctx)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Refreshed rankings for %d jobs\n", refreshed)
		return err
	}

	ranked, err := svc.UpdateRankings(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	candidates, err := svc.GetRankedCandidates(ctx, tenantID, jobID, types.MatchListOptions{Limit: rankLimit})
	if err != nil {
		return err
	}
	stats, err := svc.GetJobStats(ctx, tenantID, jobID)
	if err != nil {
		return err
	}

	if cfg.Log.JSON {
		return writeJSON(cmd, rankOutput{Ranked: ranked, Candidates: candidates, Stats: stats})
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintRanking(candidates)
	printer.PrintStats(stats)
	return nil
}
