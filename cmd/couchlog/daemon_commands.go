package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"couchlog/internal/api"
	"couchlog/internal/config"
	"couchlog/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the couchlog daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			socket := ctx.socketPath()

			if client, err := ipc.Dial(socket); err == nil {
				_ = client.Close()
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon not running, launching...")
			if err := launchDaemon(exe, launchOptionsFrom(ctx)); err != nil {
				return err
			}
			client, err := waitForClient(socket, 10*time.Second)
			if err != nil {
				return err
			}
			defer client.Close()
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the couchlog daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			socket := ctx.socketPath()

			client, err := ipc.Dial(socket)
			if err != nil {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			_, stopErr := client.Stop()
			_ = client.Close()
			if stopErr != nil {
				return fmt.Errorf("request stop: %w", stopErr)
			}
			if err := waitForShutdown(socket, 5*time.Second); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the couchlog daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			socket := ctx.socketPath()

			if client, err := ipc.Dial(socket); err == nil {
				_, stopErr := client.Stop()
				_ = client.Close()
				if stopErr != nil {
					return fmt.Errorf("request stop: %w", stopErr)
				}
				if err := waitForShutdown(socket, 5*time.Second); err != nil {
					return err
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			if err := launchDaemon(exe, launchOptionsFrom(ctx)); err != nil {
				return err
			}
			client, err := waitForClient(socket, 10*time.Second)
			if err != nil {
				return err
			}
			defer client.Close()
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, session, and backlog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, ctx)
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func launchOptionsFrom(ctx *commandContext) launchOptions {
	opts := launchOptions{}
	if ctx.configFlag != nil {
		opts.ConfigPath = *ctx.configFlag
	}
	return opts
}

func runStatus(cmd *cobra.Command, ctx *commandContext) error {
	stdout := cmd.OutOrStdout()
	cfg := ctx.configValue()
	colorize := shouldColorize(stdout)

	var status *ipc.StatusResponse
	if client, err := ctx.dialClient(); err == nil {
		status, err = client.Status()
		_ = client.Close()
		if err != nil {
			return fmt.Errorf("query daemon status: %w", err)
		}
	}

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status == nil {
		fmt.Fprintln(stdout, renderStatusLine("Running", statusWarn, "no (socket unreachable)", colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Running", statusOK, fmt.Sprintf("yes (pid %d)", status.PID), colorize))
		if status.LastError != "" {
			fmt.Fprintln(stdout, renderStatusLine("Last error", statusError, status.LastError, colorize))
		}
	}
	for _, line := range directoryChecks(cfg, colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Session", colorize) {
		fmt.Fprintln(stdout, line)
	}
	if status == nil || status.Session == nil {
		fmt.Fprintln(stdout, "No active session")
	} else {
		printSession(stdout, status.Session, colorize)
	}
	fmt.Fprintln(stdout)

	for _, line := range renderSectionHeader("Backlog", colorize) {
		fmt.Fprintln(stdout, line)
	}
	switch {
	case status == nil:
		fmt.Fprintln(stdout, "Unavailable while the daemon is stopped")
	case status.BacklogCount == 0:
		fmt.Fprintln(stdout, "Backlog is empty")
	default:
		fmt.Fprintf(stdout, "%d pending completion(s); run `couchlog backlog list` for details\n", status.BacklogCount)
	}
	return nil
}

func printSession(stdout io.Writer, session *api.SessionStatus, colorize bool) {
	title := session.Title
	if ref := episodeLabel(session.MediaType, session.Season, session.Episode); ref != "" {
		title = fmt.Sprintf("%s %s", title, ref)
	}
	fmt.Fprintln(stdout, renderStatusLine("Title", statusInfo, title, colorize))
	fmt.Fprintln(stdout, renderStatusLine("State", statusInfo, session.State, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Paused", statusInfo, yesNo(session.Paused), colorize))
	if session.HasPercent {
		fmt.Fprintln(stdout, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%.1f%%", session.Percent*100), colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Progress", statusInfo, "unknown", colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Started", statusInfo, session.StartedAt.Local().Format(time.RFC822), colorize))
}

// directoryChecks verifies that the daemon's working directories are usable.
func directoryChecks(cfg *config.Config, colorize bool) []string {
	if cfg == nil {
		return nil
	}
	checks := []struct {
		label string
		path  string
	}{
		{"Data directory", cfg.Paths.DataDir},
		{"Log directory", cfg.Paths.LogDir},
	}
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		if check.path == "" {
			continue
		}
		if err := unix.Access(check.path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
			lines = append(lines, renderStatusLine(check.label, statusError, fmt.Sprintf("%s (%v)", check.path, err), colorize))
			continue
		}
		lines = append(lines, renderStatusLine(check.label, statusOK, check.path, colorize))
	}
	return lines
}
