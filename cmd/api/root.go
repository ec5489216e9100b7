package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. Running it without a subcommand
// starts the server.
func NewRootCmd() *cobra.Command {
	serve := NewServeCmd()

	cmd := &cobra.Command{
		Use:   "authgate",
		Short: "authgate - user signup, login and bearer-token gateway",
		Long: `authgate registers users with hashed passwords, issues signed
bearer tokens on login and protects endpoints behind those tokens.
Configuration is read from environment variables.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
