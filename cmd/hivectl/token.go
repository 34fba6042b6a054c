package main

import (
	"fmt"
	"hive-chat/auth"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *options) *cobra.Command {
	token := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an access token signed with AUTH_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens := auth.NewTokenManager(opts.authSecret, opts.tokenTTL)
			if !tokens.Enabled() {
				return fmt.Errorf("AUTH_SECRET is empty, the server does not check tokens")
			}
			signed, err := tokens.GenerateToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	token.Flags().StringVar(&opts.authSecret, "secret", envOr("AUTH_SECRET", ""), "signing secret")
	token.Flags().DurationVar(&opts.tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	return token
}
