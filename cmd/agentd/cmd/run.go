package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fenwick-labs/agentd/internal/config"
	"github.com/fenwick-labs/agentd/internal/daemon"
	"github.com/fenwick-labs/agentd/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the daemon and block until it is stopped",
	RunE:  runDaemon,
}

func runDaemon(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	slog.SetDefault(log)

	orch := daemon.New(cfg, log)

	if code := orch.Guard().PairingCode(); code != "" {
		fmt.Printf("Pairing required. One-time code: %s\n", code)
		fmt.Println("Redeem it with: POST /pair, header X-Pairing-Code: <code>")
	}

	log.Info("starting agentd",
		"gateway_host", cfg.Gateway.Host,
		"gateway_port", cfg.Gateway.Port,
	)

	return orch.Run(context.Background())
}
