package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flotatrack/fleet-assistant/modules/assistant/presentation/mappers"
	"github.com/flotatrack/fleet-assistant/modules/assistant/services"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var userID, companyID int64

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question against the fleet database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := identityFlags(userID, companyID)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.module.Service().ProcessQuery(cmd.Context(), services.QueryRequest{
				Message:   strings.Join(args, " "),
				UserID:    key.UserID,
				CompanyID: key.CompanyID,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(out, mappers.QueryResponseToDTO(resp))
			}
			fmt.Fprintln(out, resp.ResponseText)
			fmt.Fprintf(out, "\n[%s %.2f, %dms]\n", resp.Intent, resp.Confidence, resp.ProcessingTimeMs)
			for _, s := range resp.Suggestions {
				fmt.Fprintf(out, "  > %s\n", s.Text)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 1, "User id")
	cmd.Flags().Int64Var(&companyID, "company", 0, "Company id (required)")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
