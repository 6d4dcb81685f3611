package main

import (
	"fmt"
	"os"

	"github.com/ksred/linkdesk/internal/config"
	"github.com/spf13/cobra"
)

const version = "v0.1.0"

// options are the persistent flags shared by every command
type options struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "linkdesk",
		Short: "Link search and patch administration service",
		Long: `linkdesk serves ranked link suggestions for doctypes, translated labels
and the patch log of its own migrations.

Run "linkdesk serve" for the HTTP API or "linkdesk mcp" for the stdio MCP server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Server.LogLevel = opts.logLevel
			}
			opts.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newRunPatchCmd(opts),
		newMCPCmd(opts),
	)

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfiguration reads the file and environment. A missing file falls
// back to defaults; an invalid one is an error.
func loadConfiguration(configPath string) (*config.Config, error) {
	if configPath == "" {
		cfg := config.LoadConfigOrDefault("")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.LoadConfig(configPath)
}
