package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/adi-family/cocoon/internal/config"
	"github.com/adi-family/cocoon/internal/logger"
	"github.com/adi-family/cocoon/internal/runtime"
)

func main() {
	root := &cobra.Command{
		Use:   "cocoond",
		Short: "cocoon remote worker agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if err := cfg.WriteSnapshot(); err != nil {
				logger.Log.Warn("failed to write config snapshot", "err", err)
			}

			agent, err := runtime.New(cfg, logger.Log)
			if err != nil {
				return fmt.Errorf("construct agent: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			logger.Log.Info("starting cocoon agent", "signaling_url", cfg.SignalingURL, "name", cfg.Name)
			return agent.Run(ctx)
		},
	}
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
