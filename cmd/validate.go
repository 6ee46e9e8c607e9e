package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <spec>",
		Short: "Validate an API description and list its operations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.close()

			endpoints, err := rt.pipeline.Endpoints(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s is valid: %d operations\n", args[0], len(endpoints))
			for _, e := range endpoints {
				fmt.Fprintf(out, "  %s\n", e.Key())
			}
			return nil
		},
	}
}
