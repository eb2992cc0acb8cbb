package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/hours-engine/factory"
)

func runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := openStore(app.ctx, app.cfg.Database, app.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer runs.Close()

			list, err := runs.ListRuns(app.ctx)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nFound %d runs:\n\n", len(list))
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPERIOD\tCREATED\tROWS\tHOURS\tAMOUNT\tBALANCED\tLABEL")
			for _, r := range list {
				fmt.Fprintf(tw, "%s\t%04d-%02d\t%s\t%d\t%.2f\t%s\t%t\t%s\n",
					r.ID, r.Year, r.Month, r.CreatedAt.Format(time.DateTime),
					r.Rows, r.TotalHours, r.TotalAmount.StringFixed(2), r.Balanced, r.Label)
			}
			return tw.Flush()
		},
	}
}

func rolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Print the role table in use as JSON",
		Long:  `Prints the configured role table (engine.rolesFile, or the default). The output is a valid rolesFile.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := factory.NewRoleFactory().ToJSON(app.engine.Config().Roles)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(table)
		},
	}
}
