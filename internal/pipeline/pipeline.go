// Package pipeline wires the stages of a test run together: load, validate,
// extract, generate and execute.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"oas-testgen/internal/config"
	"oas-testgen/internal/executor"
	"oas-testgen/internal/llm"
	"oas-testgen/internal/logger"
	"oas-testgen/internal/parser"
	"oas-testgen/internal/reporter"
	"oas-testgen/internal/testcase"
	"oas-testgen/internal/types"
)

// ErrNoGenerationClient is returned when the llm strategy is requested
// without a client.
var ErrNoGenerationClient = errors.New("llm strategy requires a generation client")

// ErrUnknownStrategy is returned for a strategy other than rules, llm or all.
var ErrUnknownStrategy = errors.New("unknown generation strategy")

// ErrNoBaseURL is returned when neither the caller, the configuration nor
// the document names a target server.
var ErrNoBaseURL = errors.New("no base URL given and none declared in the document")

// Options selects what Plan generates.
type Options struct {
	Strategy          string
	Counts            testcase.Counts
	UseDeclaredStatus bool
}

// OptionsFrom returns the plan options configured in cfg.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Strategy: cfg.Generation.Strategy,
		Counts: testcase.Counts{
			Positive: cfg.Generation.Positive,
			Negative: cfg.Generation.Negative,
			Edge:     cfg.Generation.Edge,
		},
		UseDeclaredStatus: cfg.Generation.UseDeclaredStatus,
	}
}

// Plan is the output of the planning stages for one document.
type Plan struct {
	RunID     string                 `json:"run_id"`
	Source    string                 `json:"source"`
	Document  *parser.Document       `json:"-"`
	Endpoints []types.Endpoint       `json:"endpoints"`
	Auth      map[string]interface{} `json:"authentication"`
	// BaseURL is the server declared by the document, if any.
	BaseURL   string           `json:"base_url,omitempty"`
	RuleCases []types.TestCase `json:"rule_based"`
	LLMCases  []types.TestCase `json:"llm"`
}

// Cases returns the rule based cases followed by the generated ones.
func (p *Plan) Cases() []types.TestCase {
	cases := make([]types.TestCase, 0, len(p.RuleCases)+len(p.LLMCases))
	cases = append(cases, p.RuleCases...)
	return append(cases, p.LLMCases...)
}

// Pipeline runs the planning and execution stages with one configuration.
type Pipeline struct {
	cfg       *config.Config
	loader    *parser.Loader
	validator *parser.Validator
	extractor *parser.Extractor
	client    llm.Client
	logger    *logger.Logger
}

// New creates a pipeline. client may be nil when only the rules strategy is
// used.
func New(cfg *config.Config, client llm.Client, log *logger.Logger) *Pipeline {
	log = logger.OrNop(log)
	return &Pipeline{
		cfg:       cfg,
		loader:    parser.NewLoader(&http.Client{Timeout: 30 * time.Second}, log),
		validator: parser.NewValidator(log),
		extractor: parser.NewExtractor(log),
		client:    client,
		logger:    log,
	}
}

// Load fetches and validates a document. Any error is pipeline fatal.
func (p *Pipeline) Load(ctx context.Context, source string) (*parser.Document, error) {
	doc, err := p.loader.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	if _, err := p.validator.Validate(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Endpoints loads, validates and extracts the endpoints of a document.
func (p *Pipeline) Endpoints(ctx context.Context, source string) ([]types.Endpoint, error) {
	doc, err := p.Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return p.extractor.ExtractEndpoints(doc), nil
}

// Plan loads the document and generates test cases for every endpoint. The
// rule based and generative strategies run concurrently.
func (p *Pipeline) Plan(ctx context.Context, source string, opts Options) (*Plan, error) {
	strategy := strings.ToLower(opts.Strategy)
	if strategy == "" {
		strategy = config.StrategyRules
	}
	useRules := strategy == config.StrategyRules || strategy == config.StrategyAll
	useLLM := strategy == config.StrategyLLM || strategy == config.StrategyAll
	if !useRules && !useLLM {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, opts.Strategy)
	}
	if useLLM && p.client == nil {
		return nil, ErrNoGenerationClient
	}

	doc, err := p.Load(ctx, source)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		RunID:     uuid.New().String(),
		Source:    source,
		Document:  doc,
		Endpoints: p.extractor.ExtractEndpoints(doc),
		Auth:      p.extractor.ExtractAuthentication(doc),
		RuleCases: []types.TestCase{},
		LLMCases:  []types.TestCase{},
	}
	if baseURL, err := parser.BaseURL(doc); err == nil {
		plan.BaseURL = baseURL
	}
	p.logger.Info("Pipeline", "Planning run %s: %d endpoints from %s (strategy %s)",
		plan.RunID, len(plan.Endpoints), source, strategy)

	var g errgroup.Group
	if useRules {
		g.Go(func() error {
			status := testcase.FixedStatus
			if opts.UseDeclaredStatus {
				status = testcase.DeclaredStatus
			}
			plan.RuleCases = testcase.NewRuleGenerator(opts.Counts, status).Generate(plan.Endpoints)
			return nil
		})
	}
	if useLLM {
		g.Go(func() error {
			plan.LLMCases = p.generate(ctx, plan.Endpoints, opts.Counts)
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Info("Pipeline", "Run %s planned %d rule based and %d generated cases",
		plan.RunID, len(plan.RuleCases), len(plan.LLMCases))
	return plan, nil
}

// generate calls the generative strategy for every endpoint, bounded by the
// configured concurrency, and keeps endpoint order.
func (p *Pipeline) generate(ctx context.Context, endpoints []types.Endpoint, counts testcase.Counts) []types.TestCase {
	gen := testcase.NewLLMGenerator(p.client, counts,
		float32(p.cfg.LLM.Temperature), p.cfg.LLM.MaxTokens, p.logger)

	slots := make([][]types.TestCase, len(endpoints))
	var g errgroup.Group
	if p.cfg.LLM.Concurrency > 0 {
		g.SetLimit(p.cfg.LLM.Concurrency)
	}
	for i, endpoint := range endpoints {
		g.Go(func() error {
			slots[i] = gen.Generate(ctx, endpoint)
			return nil
		})
	}
	_ = g.Wait()

	cases := make([]types.TestCase, 0)
	for _, slot := range slots {
		cases = append(cases, slot...)
	}
	return cases
}

// ResolveBaseURL picks the explicit URL, then the configured one, then the
// one declared by the document.
func (p *Pipeline) ResolveBaseURL(plan *Plan, explicit string) (string, error) {
	for _, candidate := range []string{explicit, p.cfg.Environment.BaseURL, plan.BaseURL} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", ErrNoBaseURL
}

// Execute runs every planned case against baseURL and returns the report.
func (p *Pipeline) Execute(ctx context.Context, plan *Plan, baseURL string, fixtures executor.Fixtures) (*reporter.Report, error) {
	target, err := p.ResolveBaseURL(plan, baseURL)
	if err != nil {
		return nil, err
	}

	cases := plan.Cases()
	p.logger.Info("Pipeline", "Executing %d cases of run %s against %s", len(cases), plan.RunID, target)

	start := time.Now()
	exec := executor.NewTestExecutor(executor.TestConfigFrom(p.cfg), fixtures, p.logger)
	results := exec.Run(ctx, target, cases)

	report := reporter.NewReport(plan.RunID, plan.Source, target, results, time.Since(start))
	s := report.Summary
	p.logger.Info("Pipeline", "Run %s finished: %d passed, %d failed, %d skipped, %d errors",
		plan.RunID, s.Passed, s.Failed, s.Skipped, s.Errored)
	return report, nil
}
