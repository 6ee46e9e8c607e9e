package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"oas-testgen/internal/config"
	"oas-testgen/internal/executor"
	"oas-testgen/internal/fixtures"
	"oas-testgen/internal/logger"
	"oas-testgen/internal/pipeline"
	"oas-testgen/internal/reporter"
)

// errFailures ends a completed run that had failed or errored cases.
var errFailures = errors.New("run finished with failures")

func newRunCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run <spec>",
		Short: "Plan test cases and execute them against a live server",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, generationKeys); err != nil {
				return err
			}
			return bindFlags(cmd, map[string]string{
				"base-url":    "environment.base_url",
				"fixtures":    "test.fixtures",
				"concurrent":  "test.concurrent",
				"max-workers": "test.max_workers",
				"output-dir":  "reporting.output_dir",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer rt.close()

			plan, err := rt.pipeline.Plan(ctx, args[0], pipeline.OptionsFrom(rt.cfg))
			if err != nil {
				return err
			}

			var fx executor.Fixtures
			if rt.cfg.Test.Fixtures != "" {
				set, err := loadFixtures(ctx, rt.cfg, rt.log)
				if err != nil {
					return err
				}
				fx = set
			}

			report, err := rt.pipeline.Execute(ctx, plan, "", fx)
			if err != nil {
				return err
			}

			paths, err := reporter.NewReporter(reporter.ReportingConfig{
				Format:    rt.cfg.Reporting.Format,
				OutputDir: rt.cfg.Reporting.OutputDir,
			}).GenerateReport(report)
			if err != nil {
				return err
			}
			for _, p := range paths {
				rt.log.Info("Reporter", "Wrote %s", p)
			}

			if !quiet {
				reporter.RenderTable(cmd.OutOrStdout(), report)
			}
			if report.Summary.Failed+report.Summary.Errored > 0 {
				return errFailures
			}
			return nil
		},
	}

	addGenerationFlags(cmd)
	cmd.Flags().String("base-url", "", "server to test (default: configured, then declared by the document)")
	cmd.Flags().String("fixtures", "", "fixtures file (JSON or YAML) with concrete request values")
	cmd.Flags().Bool("concurrent", false, "execute cases concurrently")
	cmd.Flags().Int("max-workers", 0, "concurrent executions when --concurrent is set")
	cmd.Flags().String("output-dir", "", "directory for report files")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the result table")
	return cmd
}

// loadFixtures reads the fixtures file and resolves sql: values against the
// configured database.
func loadFixtures(ctx context.Context, cfg *config.Config, log *logger.Logger) (*fixtures.Set, error) {
	set, err := fixtures.Load(cfg.Test.Fixtures)
	if err != nil {
		return nil, err
	}
	log.Info("Fixtures", "Loaded fixtures for %d operations from %s", len(set.Keys()), cfg.Test.Fixtures)

	if !cfg.Database.Enabled() {
		return set, nil
	}
	resolver, err := fixtures.OpenSQLResolver(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	defer resolver.Close()

	if err := set.ResolveSQL(ctx, resolver); err != nil {
		return nil, err
	}
	return set, nil
}
