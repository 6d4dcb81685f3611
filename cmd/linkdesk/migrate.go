package main

import (
	"fmt"

	"github.com/ksred/linkdesk/internal/database"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newMigrateCmd(opts *options) *cobra.Command {
	var (
		skipFailing bool
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending patches and sync the models",
		Long: `Apply pending patches in manifest order. Pre model sync patches run first,
then the tables are synced, then post model sync patches run.

With --skip-failing a failing patch is logged as skipped with its traceback
and the run continues. The report is printed as YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			logger := setupLogging(cfg, cfg.Server.LogFile, nil)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()

			if dryRun {
				if err := database.SyncPatchLog(a.db.DB()); err != nil {
					return err
				}
				pending, err := a.runner.Pending(cmd.Context())
				if err != nil {
					return err
				}
				return yaml.NewEncoder(out).Encode(map[string][]string{"pending": pending})
			}

			report, err := a.migrate(cmd.Context(), skipFailing)
			if report != nil {
				if encErr := yaml.NewEncoder(out).Encode(report); encErr != nil {
					logger.Error().Err(encErr).Msg("Failed to print report")
				}
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipFailing, "skip-failing", false, "Log failing patches as skipped and continue")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending patches without running them")

	return cmd
}
