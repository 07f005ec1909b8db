package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newForgetCmd(opts *rootOptions) *cobra.Command {
	var userID, companyID int64

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Drop the stored conversation of one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := identityFlags(userID, companyID)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.module.Service().Forget(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", key)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "User id (required)")
	cmd.Flags().Int64Var(&companyID, "company", 0, "Company id (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
