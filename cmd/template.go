package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"oas-testgen/internal/fixtures"
)

func newTemplateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "template <spec>",
		Short: "Write a fixtures template with sample values for every operation",
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

			path, err := fixtures.WriteTemplate(fixtures.GenerateTemplate(endpoints), dir)
			if err != nil {
				return err
			}
			rt.log.Info("Fixtures", "Wrote template for %d operations to %s", len(endpoints), path)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "directory to write "+fixtures.TemplateFile+" into")
	return cmd
}
