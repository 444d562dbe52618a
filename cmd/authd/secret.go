package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/authkit/pkg/cookie"
)

func newSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Print a random value for AUTH_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), cookie.GenerateSecret())
			return err
		},
	}
}
