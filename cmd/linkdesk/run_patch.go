package main

import (
	"fmt"

	"github.com/ksred/linkdesk/internal/database"
	"github.com/spf13/cobra"
)

func newRunPatchCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "run-patch <identifier>",
		Short: "Run a single patch",
		Long: `Run one patch by its manifest line. Without --force a patch that already
ran is left alone. Unlike the HTTP re-run action this is not limited to
developer mode; it is an operator command.`,
		Example: `  linkdesk run-patch linkdesk.patches.v1_0.rebuild_tree_bounds --force`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			logger := setupLogging(cfg, cfg.Server.LogFile, nil)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := database.SyncPatchLog(a.db.DB()); err != nil {
				return err
			}

			ran, err := a.runner.RunSingle(cmd.Context(), args[0], force)
			if err != nil {
				return fmt.Errorf("patch %s failed: %w", args[0], err)
			}

			if ran {
				fmt.Fprintf(cmd.OutOrStdout(), "Executed %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already executed, use --force to run it again\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Run even if the patch already executed")

	return cmd
}
