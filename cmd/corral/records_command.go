package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"corral/internal/api"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List cataloged objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			var list api.RecordListResponse
			path := "/api/records?limit=" + strconv.Itoa(limit)
			if err := client.get(cmd.Context(), path, &list); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list.Records) == 0 {
				fmt.Fprintln(out, "Catalog is empty")
				return nil
			}

			rows := make([][]string, 0, len(list.Records))
			for _, rec := range list.Records {
				rows = append(rows, []string{
					strconv.FormatInt(rec.ID, 10),
					truncate(rec.ObjectKey, 60),
					rec.Status,
					formatBytes(rec.SizeBytes),
					yesNo(rec.IsCopy),
					truncate(orDash(rec.MovedFrom), 40),
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"ID", "OBJECT KEY", "STATUS", "SIZE", "COPY", "MOVED FROM"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum number of records to list")
	return cmd
}
