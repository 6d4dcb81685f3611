package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ksred/linkdesk/internal/mcp"
	"github.com/spf13/cobra"
)

// defaultMCPLogFile keeps logs off stdout, which carries the JSON-RPC stream
func defaultMCPLogFile() string {
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		return logFile
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".config", "linkdesk", "logs", "linkdesk.log")
}

func newMCPCmd(opts *options) *cobra.Command {
	var skipPatches bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools over stdio",
		Long: `Serve link search and patch log tools to an MCP client over stdio.
Logs go to the configured log file, or ~/.config/linkdesk/logs/linkdesk.log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			logFile := cfg.Server.LogFile
			if logFile == "" {
				logFile = defaultMCPLogFile()
			}
			logger := setupLogging(cfg, logFile, nil)
			logger.Info().Str("version", version).Msg("Starting linkdesk MCP server")

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if !skipPatches {
				if _, err := a.migrate(ctx, false); err != nil {
					return err
				}
			}

			server, err := mcp.NewServer(mcp.NewHandler(a.methods, a.doctypes, logger), logger)
			if err != nil {
				return err
			}

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- server.Serve(ctx)
			}()

			select {
			case <-ctx.Done():
				logger.Info().Msg("Received shutdown signal")
				return nil
			case err := <-serverErr:
				if err != nil {
					logger.Error().Err(err).Msg("MCP server error")
				}
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&skipPatches, "skip-patches", false, "Do not apply pending patches on start")

	return cmd
}
