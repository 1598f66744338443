package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"corral/internal/api"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List ingestion runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var list api.RunListResponse
			if err := client.get(cmd.Context(), "/api/runs", &list); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list.Runs) == 0 {
				fmt.Fprintln(out, "No ingestion runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(list.Runs))
			for _, run := range list.Runs {
				rows = append(rows, []string{
					run.RunID,
					run.Stage,
					strconv.Itoa(run.ProcessedItems) + "/" + strconv.Itoa(run.TotalItems),
					formatPercent(run.ProgressPercent),
					formatTime(run.StartedAt),
					truncate(orDash(run.ErrorMessage), 48),
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"RUN ID", "STAGE", "ITEMS", "PROGRESS", "STARTED", "ERROR"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
