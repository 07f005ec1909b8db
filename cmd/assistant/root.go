package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFiles []string
	driver   string
	asJSON   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "assistant",
		Short:         "Fleet assistant: Spanish questions to SQL over the fleet database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env", []string{".env", ".env.local"}, "Env files to load")
	cmd.PersistentFlags().StringVar(&opts.driver, "driver", driverPgx, "Database driver (pgx|sqlx)")
	cmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of text")

	cmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newPlanCmd(opts),
		newStatsCmd(opts),
		newForgetCmd(opts),
	)
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
