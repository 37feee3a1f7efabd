package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"esbridge/internal/engine"
	"esbridge/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := engine.Bootstrap(ctx, cfg)
		if err != nil {
			return err
		}
		logging.L().Info("esbridge running", "version", version)
		return e.Run(ctx)
	},
}

func init() { rootCmd.AddCommand(runCmd) }
