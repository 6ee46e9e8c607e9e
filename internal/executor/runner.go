package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"oas-testgen/internal/config"
	"oas-testgen/internal/logger"
	"oas-testgen/internal/types"
)

// defaultTimeout bounds each request when the configuration gives none.
const defaultTimeout = 30 * time.Second

// ErrUnsupportedMethod is reported for verbs the executor does not dispatch.
var ErrUnsupportedMethod = errors.New("unsupported HTTP method")

// TransportError wraps a failure to obtain any HTTP response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Fixtures supplies concrete request values for an endpoint template.
type Fixtures interface {
	Lookup(method, path string) (types.EndpointTestData, bool)
}

// TestConfig holds configuration for test execution
type TestConfig struct {
	Concurrent bool
	MaxWorkers int
	Timeout    time.Duration
	// RateLimit caps requests per second across all workers. Zero means no limit.
	RateLimit float64
	Auth      config.AuthConfig
}

// TestConfigFrom maps the file configuration onto executor settings.
func TestConfigFrom(cfg *config.Config) TestConfig {
	return TestConfig{
		Concurrent: cfg.Test.Concurrent,
		MaxWorkers: cfg.Test.MaxWorkers,
		Timeout:    time.Duration(cfg.Test.Timeout) * time.Second,
		RateLimit:  cfg.Test.RateLimit,
		Auth:       cfg.Environment.Auth,
	}
}

// TestExecutor handles the execution of API tests
type TestExecutor struct {
	config   TestConfig
	client   *http.Client
	limiter  *rate.Limiter
	fixtures Fixtures
	logger   *logger.Logger
}

// NewTestExecutor creates a new test executor. fixtures may be nil.
func NewTestExecutor(cfg TestConfig, fixtures Fixtures, log *logger.Logger) *TestExecutor {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if strings.EqualFold(cfg.Auth.Type, "bearer") && cfg.Auth.Token != "" {
		client.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Auth.Token, TokenType: "Bearer"}),
			Base:   http.DefaultTransport,
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &TestExecutor{
		config:   cfg,
		client:   client,
		limiter:  limiter,
		fixtures: fixtures,
		logger:   logger.OrNop(log),
	}
}

// Run executes every case against baseURL and returns one result per case
// in input order. Per-case failures become ERROR or SKIPPED results; Run
// itself never fails.
func (e *TestExecutor) Run(ctx context.Context, baseURL string, cases []types.TestCase) []types.TestResult {
	results := make([]types.TestResult, len(cases))

	if !e.config.Concurrent {
		for i, tc := range cases {
			results[i] = e.execute(ctx, baseURL, tc)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(e.config.MaxWorkers)
	for i, tc := range cases {
		g.Go(func() error {
			results[i] = e.execute(ctx, baseURL, tc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *TestExecutor) execute(ctx context.Context, baseURL string, tc types.TestCase) types.TestResult {
	result := types.TestResult{
		Endpoint:       tc.Endpoint,
		Method:         tc.Method,
		Scenario:       tc.Scenario,
		ExpectedStatus: tc.ExpectedStatus,
	}

	method := types.ParseMethod(tc.Method)
	switch method {
	case types.MethodGet, types.MethodPost, types.MethodPut, types.MethodDelete:
	case types.MethodUnsupported:
		result.Verdict = types.VerdictSkipped
		result.Reason = ErrUnsupportedMethod.Error()
		e.logger.Debug("Executor", "Skipping %s %s: %v", tc.Method, tc.Endpoint, ErrUnsupportedMethod)
		return result
	}

	req, err := e.buildRequest(ctx, method, baseURL, tc)
	if err != nil {
		result.Verdict = types.VerdictError
		result.Reason = err.Error()
		return result
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return e.transportFailure(result, req, err)
		}
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return e.transportFailure(result, req, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	result.ActualStatus = types.StatusPtr(resp.StatusCode)
	if resp.StatusCode == tc.ExpectedStatus {
		result.Verdict = types.VerdictPass
	} else {
		result.Verdict = types.VerdictFail
	}

	e.logger.Debug("Executor", "%s %s scenario=%s expected=%d actual=%d duration=%s",
		req.Method, req.URL, tc.Scenario, tc.ExpectedStatus, resp.StatusCode, time.Since(start))
	return result
}

func (e *TestExecutor) transportFailure(result types.TestResult, req *http.Request, err error) types.TestResult {
	terr := &TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	e.logger.Warn("Executor", "%v", terr)
	result.Verdict = types.VerdictError
	result.Reason = terr.Error()
	return result
}

// buildRequest creates an HTTP request for the given test case
func (e *TestExecutor) buildRequest(ctx context.Context, method types.Method, baseURL string, tc types.TestCase) (*http.Request, error) {
	path := tc.Endpoint
	var data types.EndpointTestData
	if e.fixtures != nil {
		if fixture, ok := e.fixtures.Lookup(tc.Method, tc.Endpoint); ok {
			data = fixture
		}
	}

	// Replace path parameters
	for key, value := range data.PathParams {
		path = strings.ReplaceAll(path, "{"+key+"}", url.PathEscape(fmt.Sprint(value)))
	}

	target := joinURL(baseURL, path)

	// Add query parameters
	if len(data.QueryParams) > 0 {
		query := url.Values{}
		for key, value := range data.QueryParams {
			query.Set(key, fmt.Sprint(value))
		}
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	var body io.Reader
	if method.HasBody() {
		payload := tc.RequestBody
		if payload == nil {
			payload = map[string]interface{}{}
		}
		bodyBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method.String(), target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range data.Headers {
		req.Header.Set(key, value)
	}
	e.applyAuth(req)
	return req, nil
}

func (e *TestExecutor) applyAuth(req *http.Request) {
	auth := e.config.Auth
	switch strings.ToLower(auth.Type) {
	case "apikey":
		header := auth.Header
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, auth.Token)
	case "basic":
		req.SetBasicAuth(auth.Username, auth.Token)
	}
}

func joinURL(baseURL, path string) string {
	if strings.HasSuffix(baseURL, "/") && strings.HasPrefix(path, "/") {
		return baseURL + path[1:]
	}
	return baseURL + path
}
