package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"couchlog/internal/api"
	"couchlog/internal/ipc"
)

func newBacklogCommand(ctx *commandContext) *cobra.Command {
	backlogCmd := &cobra.Command{
		Use:   "backlog",
		Short: "Inspect and replay queued offline completions",
	}

	var jsonOutput bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pending backlog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BacklogList()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"entries": resp.Entries})
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(stdout, "Backlog is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					rows = append(rows, []string{
						strconv.FormatInt(entry.ID, 10),
						backlogTitle(entry),
						entry.MediaType,
						entry.WatchedAt.Local().Format(time.RFC822),
						strconv.Itoa(entry.AttemptCount),
						entry.LastError,
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Type", "Watched", "Attempts", "Last Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "Replay the backlog against the catalog service now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BacklogFlush()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				result := resp.Result
				if result.Succeeded == 0 && result.Failed == 0 && result.PermanentlyRejected == 0 {
					fmt.Fprintln(stdout, "Backlog is empty")
					return nil
				}
				fmt.Fprintf(stdout, "Backlog flush: %d reported, %d failed, %d rejected\n",
					result.Succeeded, result.Failed, result.PermanentlyRejected)
				return nil
			})
		},
	}

	backlogCmd.AddCommand(listCmd)
	backlogCmd.AddCommand(flushCmd)
	return backlogCmd
}

func backlogTitle(entry api.BacklogEntry) string {
	if ref := episodeLabel(entry.MediaType, entry.Season, entry.Episode); ref != "" {
		return fmt.Sprintf("%s %s", entry.Title, ref)
	}
	if entry.Year > 0 {
		return fmt.Sprintf("%s (%d)", entry.Title, entry.Year)
	}
	return entry.Title
}

// episodeLabel formats a season/episode reference like "S02E05".
func episodeLabel(mediaType string, season, episode int) string {
	if mediaType != "episode" {
		return ""
	}
	if season <= 0 && episode <= 0 {
		return ""
	}
	return fmt.Sprintf("S%02dE%02d", season, episode)
}
