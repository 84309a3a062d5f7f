package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "intentrouter",
	Short: "Classify task requests and run them in parallel phases",
	Long: `intentrouter classifies a free-text task request, decides whether it can be
split into independent subtasks, and runs those subtasks on a bounded worker
pool in dependency order.

Classification is two-tier: a fast keyword classifier handles most requests
and ambiguous ones are escalated to a model-backed classifier when an
Anthropic API key (or Bedrock) is configured. Intents are cached by
normalized request text.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file (default: XDG user config merged with .intentrouter.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
