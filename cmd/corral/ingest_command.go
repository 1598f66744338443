package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"corral/internal/api"
	"corral/internal/catalog"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Trigger an ingestion run",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var accepted api.IngestStartResponse
			if err := client.post(cmd.Context(), "/api/ingest", &accepted); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ingestion run %s accepted\n", accepted.RunID)
			if !wait {
				return nil
			}

			var last string
			for {
				var run api.RunStatus
				if err := client.get(cmd.Context(), "/api/runs/"+accepted.RunID, &run); err != nil {
					return err
				}

				line := fmt.Sprintf("%s: %d/%d (%s)", run.Stage, run.ProcessedItems, run.TotalItems, formatPercent(run.ProgressPercent))
				if line != last {
					fmt.Fprintln(out, line)
					last = line
				}

				switch catalog.RunStage(run.Stage) {
				case catalog.StageCompleted:
					return nil
				case catalog.StageFailed:
					return fmt.Errorf("ingestion run failed: %s", run.ErrorMessage)
				}

				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(500 * time.Millisecond):
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll the run until it finishes")
	return cmd
}
