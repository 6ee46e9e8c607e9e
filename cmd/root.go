package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"oas-testgen/internal/config"
	"oas-testgen/internal/llm"
	"oas-testgen/internal/logger"
	"oas-testgen/internal/pipeline"
	"oas-testgen/internal/server"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	// ExitCodeError indicates a pipeline-fatal error or invalid arguments.
	ExitCodeError = 1
	// ExitCodeFailures indicates a completed run with failed or errored cases.
	ExitCodeFailures = 2
)

var cfgFile string

// rootCmd is the entry point when the binary is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "oas-testgen",
	Short: "Generate and run API tests from OpenAPI and Swagger documents",
	Long: `oas-testgen loads an OpenAPI 3.x or Swagger 2.0 document, extracts its
operations, plans positive, negative and edge test cases with rules and
optionally a language model, and executes them against a live server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newTemplateCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}
	viper.SetEnvPrefix("APITEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command and exits with a semantic code on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(reportError(err))
	}
}

// reportError prints one structured error line and returns the exit code.
func reportError(err error) int {
	if errors.Is(err, errFailures) {
		return ExitCodeFailures
	}
	_, kind := server.ErrorKind(err)
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", kind, err)
	return ExitCodeError
}

// bindFlags exposes the flags of cmd to viper under the given keys. Call it
// from PreRunE: a viper key holds only its most recent binding.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

// runtime bundles what every subcommand needs.
type runtime struct {
	cfg      *config.Config
	log      *logger.Logger
	pipeline *pipeline.Pipeline
}

// setup loads the configuration, applies flag and environment overrides and
// builds the logger and pipeline. needsLLM creates a generation client.
func setup(ctx context.Context, needsLLM bool) (*runtime, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(logger.Options{Level: cfg.Logging.Level, Dir: cfg.Logging.Dir})
	if err != nil {
		return nil, err
	}

	var client llm.Client
	strategy := strings.ToLower(cfg.Generation.Strategy)
	if needsLLM && (strategy == config.StrategyLLM || strategy == config.StrategyAll) {
		client, err = llm.NewClient(ctx, llm.ConfigFrom(cfg.LLM), log)
		if err != nil {
			log.Close()
			return nil, fmt.Errorf("%w: %v", pipeline.ErrNoGenerationClient, err)
		}
	}

	return &runtime{cfg: cfg, log: log, pipeline: pipeline.New(cfg, client, log)}, nil
}

func (r *runtime) close() {
	_ = r.log.Close()
}

// applyOverrides copies the values viper knows from flags or APITEST_*
// variables over the file configuration.
func applyOverrides(cfg *config.Config) {
	if viper.IsSet("logging.level") && viper.GetString("logging.level") != "" {
		cfg.Logging.Level = viper.GetString("logging.level")
	}
	if viper.IsSet("environment.base_url") && viper.GetString("environment.base_url") != "" {
		cfg.Environment.BaseURL = viper.GetString("environment.base_url")
	}
	if viper.IsSet("generation.strategy") && viper.GetString("generation.strategy") != "" {
		cfg.Generation.Strategy = viper.GetString("generation.strategy")
	}
	if viper.IsSet("generation.positive") {
		cfg.Generation.Positive = viper.GetInt("generation.positive")
	}
	if viper.IsSet("generation.negative") {
		cfg.Generation.Negative = viper.GetInt("generation.negative")
	}
	if viper.IsSet("generation.edge") {
		cfg.Generation.Edge = viper.GetInt("generation.edge")
	}
	if viper.IsSet("generation.use_declared_status") {
		cfg.Generation.UseDeclaredStatus = viper.GetBool("generation.use_declared_status")
	}
	if viper.IsSet("test.fixtures") && viper.GetString("test.fixtures") != "" {
		cfg.Test.Fixtures = viper.GetString("test.fixtures")
	}
	if viper.IsSet("test.max_workers") {
		cfg.Test.MaxWorkers = viper.GetInt("test.max_workers")
	}
	if viper.IsSet("test.concurrent") {
		cfg.Test.Concurrent = viper.GetBool("test.concurrent")
	}
	if viper.IsSet("reporting.output_dir") && viper.GetString("reporting.output_dir") != "" {
		cfg.Reporting.OutputDir = viper.GetString("reporting.output_dir")
	}
	if viper.IsSet("server.addr") && viper.GetString("server.addr") != "" {
		cfg.Server.Addr = viper.GetString("server.addr")
	}
}

// addGenerationFlags registers the planning flags shared by generate, run
// and serve.
func addGenerationFlags(cmd *cobra.Command) {
	cmd.Flags().String("strategy", "", "generation strategy: rules, llm or all")
	cmd.Flags().Int("positive", 0, "positive cases per endpoint")
	cmd.Flags().Int("negative", 0, "negative cases per endpoint")
	cmd.Flags().Int("edge", 0, "edge cases per endpoint")
	cmd.Flags().Bool("declared-status", false, "expect the status codes the document declares")
}

var generationKeys = map[string]string{
	"strategy":        "generation.strategy",
	"positive":        "generation.positive",
	"negative":        "generation.negative",
	"edge":            "generation.edge",
	"declared-status": "generation.use_declared_status",
}
