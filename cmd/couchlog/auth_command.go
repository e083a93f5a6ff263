package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"couchlog/internal/catalog/simkl"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize couchlog with Simkl using a device code",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Simkl.ClientID == "" {
				return errors.New("simkl client_id is not configured; run `couchlog config init` and edit the file first")
			}

			client, err := simkl.New(cfg.Simkl.ClientID, cfg.Simkl.BaseURL)
			if err != nil {
				return err
			}

			code, err := client.RequestDeviceCode(cmd.Context())
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Open %s and enter the code: %s\n", code.VerificationURL, code.UserCode)
			fmt.Fprintln(stdout, "Waiting for approval...")

			token, err := client.WaitForToken(cmd.Context(), code)
			if err != nil {
				return err
			}

			cfg.Simkl.AccessToken = token
			if err := cfg.Save(ctx.configPath); err != nil {
				return fmt.Errorf("save access token: %w", err)
			}
			fmt.Fprintf(stdout, "Authorized. Access token saved to %s\n", ctx.configPath)
			fmt.Fprintln(stdout, "Restart the daemon to pick up the new token.")
			return nil
		},
	}
}
