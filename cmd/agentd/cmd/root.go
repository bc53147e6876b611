package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentd",
	Short: "Supervision and reliability core for the agent daemon",
	Long: `agentd hosts a gateway and several independently-failing worker
components (gateway, channels, heartbeat, scheduler) under a
supervisor that restarts them with exponential backoff and jitter,
aggregates their health into a periodically-flushed state file, and
gates the gateway behind a one-time pairing code.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(healthcheckCmd)
}
