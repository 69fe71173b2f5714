package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyonlabs/claimd/cmd/claimd/commands"
	"github.com/halcyonlabs/claimd/logger"
)

var rootCmd = &cobra.Command{
	Use:   "claimd",
	Short: "claimd - Claim job orchestration engine",
	Long: `claimd - Daily claim orchestration for registered accounts.

claimd drives scarce browser-automation sessions to perform claim operations
against a third-party web property, at most one successful claim per account
per UTC day.

Available commands:
  serve    - Start the claimd server (scheduler, API, live progress)
  batch    - Trigger and inspect claim batches
  records  - Inspect stored claim records
  targets  - Manage the account registry
  config   - Show effective configuration
  version  - Show version information

Examples:
  claimd serve                     # Start the engine with the daily scheduler
  claimd batch run                 # Claim for every registered account now
  claimd batch run acct-1 acct-2   # Claim for an explicit subset
  claimd records --account acct-1  # Claim history for one account
  claimd targets add acct-1 "Main" # Register an account`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.BatchCmd)
	rootCmd.AddCommand(commands.RecordsCmd)
	rootCmd.AddCommand(commands.TargetsCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
