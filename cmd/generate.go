package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"oas-testgen/internal/export"
	"oas-testgen/internal/pipeline"
)

func newGenerateCmd() *cobra.Command {
	var (
		output string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "generate <spec>",
		Short: "Plan test cases for every operation without executing them",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, generationKeys)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer rt.close()

			plan, err := rt.pipeline.Plan(cmd.Context(), args[0], pipeline.OptionsFrom(rt.cfg))
			if err != nil {
				return err
			}

			if output != "" {
				if err := export.WriteCSVFile(output, plan.Cases()); err != nil {
					return err
				}
				rt.log.Info("Pipeline", "Wrote %d cases to %s", len(plan.Cases()), output)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}

			fmt.Fprintf(out, "Run %s: %d operations\n", plan.RunID, len(plan.Endpoints))
			if len(plan.RuleCases) > 0 {
				fmt.Fprintf(out, "\nRule based (%d):\n", len(plan.RuleCases))
				for _, tc := range plan.RuleCases {
					fmt.Fprintf(out, "  [%d] %s\n", tc.ExpectedStatus, tc.Description)
				}
			}
			if len(plan.LLMCases) > 0 {
				fmt.Fprintf(out, "\nGenerated (%d):\n", len(plan.LLMCases))
				for _, tc := range plan.LLMCases {
					fmt.Fprintf(out, "  [%d] %s %s: %s\n", tc.ExpectedStatus, tc.Method, tc.Endpoint, tc.Description)
				}
			}
			return nil
		},
	}

	addGenerationFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the planned cases to a CSV file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	return cmd
}
