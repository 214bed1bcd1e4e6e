package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
)

var (
	runConfigPath string
	runDate       string
	runForce      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline once and exit",
}

var runDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Run the daily pipeline for all active accounts",
	RunE:  runOnce("daily"),
}

var runMonthlyCmd = &cobra.Command{
	Use:   "monthly",
	Short: "Run the monthly pipeline for all active accounts",
	RunE:  runOnce("monthly"),
}

var runAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the system audit over the previous month",
	RunE:  runOnce("audit"),
}

func init() {
	runCmd.PersistentFlags().StringVar(&runConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	runCmd.PersistentFlags().StringVar(&runDate, "date", "", "reference date (YYYY-MM-DD, default today)")
	runCmd.PersistentFlags().BoolVar(&runForce, "force", false, "bypass the duplicate-run guard")
	runCmd.AddCommand(runDailyCmd, runMonthlyCmd, runAuditCmd)
}

// runOnce builds a RunE for a single one-shot pipeline invocation.
func runOnce(name string) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		cfg, err := config.Load(goutils.Env("SIGNALSAI_CONFIG", runConfigPath))
		if err != nil {
			return err
		}

		ref := time.Now().UTC()
		if runDate != "" {
			ref, err = time.Parse("2006-01-02", runDate)
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", runDate, err)
			}
		}

		sc, err := initShared(cfg, logger)
		if err != nil {
			return err
		}
		defer sc.Cleanup()

		ctx := context.Background()

		switch name {
		case "daily":
			report, err := sc.Orchestrator.RunDailyAll(ctx, ref)
			if err != nil {
				return err
			}
			printReport(report.Pipeline, report.Succeeded, report.Skipped, report.Failed)

		case "monthly":
			report, err := sc.Orchestrator.RunMonthlyAll(ctx, ref)
			if err != nil {
				return err
			}
			printReport(report.Pipeline, report.Succeeded, report.Skipped, report.Failed)

		case "audit":
			report, err := sc.Orchestrator.RunAudit(ctx, ref, runForce)
			if err != nil {
				return err
			}
			if report.Skipped {
				fmt.Printf("audit skipped: %s\n", report.SkipReason)
				return nil
			}
			for _, g := range report.Groups {
				fmt.Printf("audit %s: results=%d guardian_ok=%v governance_ok=%v\n",
					g.Stage, g.ResultCount, g.GuardianOK, g.GovernanceOK)
			}
		}
		return nil
	}
}

func printReport(pipeline string, succeeded, skipped, failed int) {
	fmt.Printf("%s: succeeded=%d skipped=%d failed=%d\n", pipeline, succeeded, skipped, failed)
}
