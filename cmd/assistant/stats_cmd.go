package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flotatrack/fleet-assistant/modules/assistant/presentation/mappers"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var userID, companyID int64

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the learning statistics of one conversation",
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

			stats, err := rt.module.Service().Memory().GetLearningStats(cmd.Context(), key)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(w, mappers.LearningStatsToDTO(stats))
			}
			fmt.Fprintf(w, "interactions: %d (%d successful, %d%%)\n", stats.TotalInteractions, stats.SuccessfulInteractions, stats.SuccessRate)
			for _, in := range stats.TopIntents {
				fmt.Fprintf(w, "  %-22s %3d%% of %d\n", in.Intent, in.SuccessRate, in.Total)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "User id (required)")
	cmd.Flags().Int64Var(&companyID, "company", 0, "Company id (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
