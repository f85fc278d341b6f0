// Package cmd provides the CLI commands for openbidder.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/openbidder/internal/config"
	"github.com/patrickwarner/openbidder/internal/observability"
)

var (
	verbose  bool
	strategy string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "openbidder",
	Short: "Capacity-aware bidding agent for repeated keyword auctions",
	Long: `openbidder prices every market segment of a repeated ad auction and
shapes spend when the advertiser nears its distribution capacity.

Configuration is read from the environment (see BID_STRATEGY, PORT,
REDIS_ENABLED and friends).

Examples:
  openbidder serve
  openbidder simulate --periods 60
  openbidder simulate --server http://localhost:8788 --periods 10`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&strategy, "strategy", "", "admission strategy preset (naive, capacity, demand); overrides BID_STRATEGY")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig() config.Config {
	cfg := config.Load()
	if strategy != "" {
		cfg.Strategy = strategy
	}
	return cfg
}

func logLevel() zapcore.Level {
	if verbose {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "openbidder version %s\n", observability.Version)
	},
}
