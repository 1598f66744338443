package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"corral/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var status api.DaemonStatus
			if err := client.get(cmd.Context(), "/api/status", &status); err != nil {
				return err
			}

			rows := [][]string{
				{"Running", yesNo(status.Running)},
				{"PID", strconv.Itoa(status.PID)},
				{"Catalog DB", status.CatalogDBPath},
				{"Lock file", status.LockFilePath},
				{"Queue pending", strconv.Itoa(status.Queue.Pending)},
				{"Queue running", strconv.Itoa(status.Queue.Running)},
				{"Queue finished", strconv.Itoa(status.Queue.Finished)},
			}
			if status.LatestRun != nil {
				run := status.LatestRun
				rows = append(rows,
					[]string{"Latest run", run.RunID},
					[]string{"Run stage", run.Stage},
					[]string{"Run progress", fmt.Sprintf("%d/%d (%s)", run.ProcessedItems, run.TotalItems, formatPercent(run.ProgressPercent))},
				)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"FIELD", "VALUE"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
