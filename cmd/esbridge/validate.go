package main

import (
	"github.com/spf13/cobra"

	"esbridge/internal/engine"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and load every transform script",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, svc, err := engine.Build(cfg)
		if err != nil {
			return err
		}
		cmd.Printf("configuration OK: %d event group(s), %d request topic(s)\n",
			len(svc.Groups()), len(svc.RequestTopics()))
		for _, topic := range svc.Topics() {
			cmd.Printf("  %s\n", topic)
		}
		return nil
	},
}

func init() { rootCmd.AddCommand(validateCmd) }
