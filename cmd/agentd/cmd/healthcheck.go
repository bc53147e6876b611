package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fenwick-labs/agentd/internal/config"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Read the daemon's state file and report component health",
	RunE:  runHealthcheck,
}

func runHealthcheck(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(cfg.StateFilePath())
	if err != nil {
		return fmt.Errorf("failed to read state file %s: %w", cfg.StateFilePath(), err)
	}

	var state struct {
		Components map[string]struct {
			Status string `json:"status"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	unhealthy := false
	for name, c := range state.Components {
		fmt.Printf("%-16s %s\n", name, c.Status)
		if c.Status == "error" {
			unhealthy = true
		}
	}

	if unhealthy {
		os.Exit(1)
	}
	return nil
}
