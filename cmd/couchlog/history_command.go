package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"couchlog/internal/api"
	"couchlog/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently reported completions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryList(limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"records": resp.Records})
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Records) == 0 {
					fmt.Fprintln(stdout, "No watch history yet")
					return nil
				}
				rows := make([][]string, 0, len(resp.Records))
				for _, record := range resp.Records {
					rows = append(rows, []string{
						record.WatchedAt.Local().Format(time.RFC822),
						historyTitle(record),
						record.MediaType,
						record.Source,
					})
				}
				table := renderTable(
					[]string{"Watched", "Title", "Type", "Source"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func historyTitle(record api.HistoryRecord) string {
	if ref := episodeLabel(record.MediaType, record.Season, record.Episode); ref != "" {
		return fmt.Sprintf("%s %s", record.Title, ref)
	}
	if record.Year > 0 {
		return fmt.Sprintf("%s (%d)", record.Title, record.Year)
	}
	return record.Title
}
