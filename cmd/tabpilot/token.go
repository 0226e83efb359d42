package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/tabpilot/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		client string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the HTTP control API",
		Long: `token signs a bearer token with http.token_secret from the config file or
TABPILOT_TOKEN_SECRET. Send it as "Authorization: Bearer <token>".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.HTTP.TokenSecret == "" {
				return errors.New("no token secret configured (http.token_secret or TABPILOT_TOKEN_SECRET)")
			}
			tok, err := auth.GenerateToken([]byte(cfg.HTTP.TokenSecret), client, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&client, "client", "cli", "client name recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
