// SignalsAI runs recurring analysis pipelines over practice business metrics.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "signalsai",
	Short: "SignalsAI backend: recurring agent analysis pipelines for business metrics.",
	Long: `SignalsAI runs daily, monthly, and audit pipelines over every active account.
Each pipeline collects business metrics, chains remote analysis agents, extracts
actionable tasks, and records results with per-period idempotency.`,
	RunE:          runServe, // Default to service mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, runCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
