package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ksred/linkdesk/internal/api"
	"github.com/ksred/linkdesk/internal/database"
	"github.com/spf13/cobra"

	// Import swagger docs
	_ "github.com/ksred/linkdesk/docs"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		skipPatches bool
		port        int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. Pending patches are applied first unless --skip-patches
is given, in which case only the models are synced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if port > 0 {
				cfg.HTTP.Port = port
			}

			logger := setupLogging(cfg, cfg.Server.LogFile, nil)
			logger.Info().
				Str("version", version).
				Int("port", cfg.HTTP.Port).
				Bool("developer_mode", cfg.Server.DeveloperMode).
				Msg("Starting linkdesk HTTP API")

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if skipPatches {
				logger.Warn().Msg("Skipping patches as requested")
				if err := database.SyncModels(a.db.DB().WithContext(ctx)); err != nil {
					return err
				}
			} else if _, err := a.migrate(ctx, false); err != nil {
				return err
			}

			server, err := api.NewServer(cfg, a.db, api.Dependencies{
				Search:     a.search,
				PatchLogs:  a.patchLogs,
				DocTypes:   a.doctypes,
				Records:    a.records,
				Activity:   a.activity,
				Translator: a.translator,
				Methods:    a.methods,
				Metrics:    a.metrics,
			}, logger)
			if err != nil {
				return err
			}

			serverErr := make(chan error, 1)
			go func() {
				if err := server.Start(cfg.HTTP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-ctx.Done():
				logger.Info().Msg("Received shutdown signal")
			case err := <-serverErr:
				logger.Error().Err(err).Msg("HTTP server error")
				return err
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("Failed to gracefully shutdown HTTP server")
			}

			logger.Info().Msg("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPatches, "skip-patches", false, "Do not apply pending patches on start")
	cmd.Flags().IntVar(&port, "port", 0, "Override the configured HTTP port")

	return cmd
}
