package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type planOutput struct {
	Intent       string   `json:"intent"`
	Confidence   float64  `json:"confidence"`
	Classifier   string   `json:"classifier"`
	Keywords     []string `json:"keywords"`
	SQL          string   `json:"sql"`
	Params       []any    `json:"params"`
	Table        string   `json:"table"`
	Explanation  string   `json:"explanation"`
	Complexity   float64  `json:"complexity"`
	IsMultiQuery bool     `json:"isMultiQuery"`
}

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var companyID int64

	cmd := &cobra.Command{
		Use:   "plan [question]",
		Short: "Show the analysis and SQL plan for a question without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if companyID <= 0 {
				return fmt.Errorf("--company must be positive")
			}
			rt, err := newRuntime(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			analysis, plan, err := rt.module.Service().Plan(cmd.Context(), strings.Join(args, " "), companyID)
			if err != nil {
				return err
			}
			out := planOutput{
				Intent:       analysis.Intent.String(),
				Confidence:   analysis.Confidence,
				Classifier:   string(analysis.Source),
				Keywords:     analysis.Keywords,
				SQL:          plan.SQL,
				Params:       plan.Params,
				Table:        plan.FromTable,
				Explanation:  plan.Explanation,
				Complexity:   plan.Complexity,
				IsMultiQuery: plan.IsMultiQuery,
			}
			w := cmd.OutOrStdout()
			if opts.asJSON {
				return writeJSON(w, out)
			}
			fmt.Fprintf(w, "intent:     %s (%.2f, %s)\n", out.Intent, out.Confidence, out.Classifier)
			fmt.Fprintf(w, "plan:       %s\n", out.Explanation)
			if out.SQL != "" {
				fmt.Fprintf(w, "sql:        %s\n", out.SQL)
				fmt.Fprintf(w, "params:     %v\n", out.Params)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&companyID, "company", 1, "Company id")
	return cmd
}
