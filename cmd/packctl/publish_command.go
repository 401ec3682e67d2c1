package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/seatpack-sync/internal/database"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "List pending seat packs on the marketplace",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = a.Config.PublishBatch
			}
			res, err := a.Publisher.PublishPending(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd, res)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum packs to publish (default PUBLISH_BATCH)")
	return cmd
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Building the app migrates.
			if _, err := ctx.ensureApp(cmd.Context()); err != nil {
				return err
			}
			ms, err := database.Migrations()
			if err != nil || len(ms) == 0 {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at %s (%d migrations)\n", ms[len(ms)-1].Version, len(ms))
			return nil
		},
	}
}
