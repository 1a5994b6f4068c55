package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rras",
	Short: "RRAS - Regulatory Reporting and Analytics System",
	Long: `RRAS Unified CLI

Snapshot-based regulatory calculation pipeline: RWA, NPL, ECL,
capital adequacy and liquidity coverage over a frozen loan book.

Usage:
  go run ./cmd/rras [command]

Examples:
  go run ./cmd/rras api
  go run ./cmd/rras run --date 2026-06-30 --frequency PERIODIC
  go run ./cmd/rras scheduler start
  go run ./cmd/rras status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
