package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"esbridge/internal/config"
	"esbridge/internal/logging"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	logJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "esbridge",
	Short: "Bridge Kafka topics to Elasticsearch",
	Long: `esbridge indexes events published on Kafka topics into Elasticsearch and
serves a configured subset of the Elasticsearch API as request/response
topics on the same bus.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		opts := logging.FromEnv()
		if cmd.Flags().Changed("log-level") {
			opts.Level = logLevel
		}
		if cmd.Flags().Changed("log-json") {
			opts.JSON = logJSON
		}
		opts.Output = cmd.ErrOrStderr()
		logging.Configure(opts)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("esbridge version %s\n", version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "esbridge.yml", "configuration file")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolVar(&logJSON, "log-json", false, "log as JSON")
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	logging.L().Debug("configuration loaded", "path", configPath, "servers", len(cfg.Servers),
		"event_groups", cfg.GroupNames(), "api_names", cfg.General.APINames)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
