package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oas-testgen/internal/config"
	"oas-testgen/internal/parser"
	"oas-testgen/internal/testcase"
	"oas-testgen/internal/types"
)

const specTemplate = `{
  "openapi": "3.0.3",
  "info": {"title": "Demo", "version": "1.0.0"},
  "servers": [{"url": %q}],
  "paths": {
    "/ok": {
      "get": {"responses": {"200": {"description": "ok"}}}
    },
    "/gone": {
      "delete": {"responses": {"204": {"description": "deleted"}}}
    }
  }
}`

func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/ok" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeSpec(t *testing.T, serverURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(specTemplate, serverURL)), 0644))
	return path
}

type scriptedClient struct {
	mu    sync.Mutex
	calls int
	reply string
}

func (c *scriptedClient) Complete(_ context.Context, _ string, _ float32, _ int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.reply, nil
}

func TestPlanRules(t *testing.T) {
	srv := apiServer(t)
	p := New(config.Default(), nil, nil)

	plan, err := p.Plan(context.Background(), writeSpec(t, srv.URL), Options{
		Strategy: config.StrategyRules,
		Counts:   testcase.Counts{Positive: 1, Negative: 1, Edge: 1},
	})
	require.NoError(t, err)

	require.Len(t, plan.Endpoints, 2)
	assert.Equal(t, "GET /ok", plan.Endpoints[0].Key())
	assert.Equal(t, "DELETE /gone", plan.Endpoints[1].Key())
	assert.Len(t, plan.RuleCases, 6)
	assert.Empty(t, plan.LLMCases)
	assert.Equal(t, srv.URL, plan.BaseURL)
	assert.NotEmpty(t, plan.RunID)
	assert.NotNil(t, plan.Auth)
}

func TestPlanUnselectedStrategyEncodesEmptyList(t *testing.T) {
	p := New(config.Default(), nil, nil)

	plan, err := p.Plan(context.Background(), writeSpec(t, "http://localhost"), Options{
		Strategy: config.StrategyRules,
		Counts:   testcase.Counts{Positive: 1},
	})
	require.NoError(t, err)
	require.NotNil(t, plan.LLMCases)

	data, err := json.Marshal(plan)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"llm":[]`)
	assert.NotContains(t, string(data), `"llm":null`)

	gen := New(config.Default(), &scriptedClient{reply: "[]"}, nil)
	cases := gen.generate(context.Background(), nil, testcase.Counts{Positive: 1})
	assert.NotNil(t, cases)
	assert.Empty(t, cases)
}

func TestPlanAllStrategiesKeepsEndpointOrder(t *testing.T) {
	client := &scriptedClient{reply: "not json"}
	cfg := config.Default()
	cfg.LLM.Concurrency = 2
	p := New(cfg, client, nil)

	plan, err := p.Plan(context.Background(), writeSpec(t, "http://localhost"), Options{
		Strategy: config.StrategyAll,
		Counts:   testcase.Counts{Positive: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, client.calls)
	assert.Len(t, plan.RuleCases, 2)
	require.Len(t, plan.LLMCases, 2)
	assert.Equal(t, "/ok", plan.LLMCases[0].Endpoint)
	assert.Equal(t, "/gone", plan.LLMCases[1].Endpoint)
	for _, tc := range plan.LLMCases {
		assert.Equal(t, "default", tc.Scenario)
		assert.Equal(t, 200, tc.ExpectedStatus)
	}

	cases := plan.Cases()
	require.Len(t, cases, 4)
	assert.Equal(t, "positive_variant_1", cases[0].Scenario)
	assert.Equal(t, "default", cases[3].Scenario)
}

func TestPlanErrors(t *testing.T) {
	p := New(config.Default(), nil, nil)
	ctx := context.Background()

	_, err := p.Plan(ctx, writeSpec(t, "http://localhost"), Options{Strategy: config.StrategyLLM})
	assert.ErrorIs(t, err, ErrNoGenerationClient)

	_, err = p.Plan(ctx, writeSpec(t, "http://localhost"), Options{Strategy: "random"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = p.Plan(ctx, filepath.Join(t.TempDir(), "missing.json"), Options{})
	var fetchErr *parser.SpecFetchError
	assert.True(t, errors.As(err, &fetchErr))

	invalid := filepath.Join(t.TempDir(), "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"openapi": "3.0.0", "paths": {}}`), 0644))
	_, err = p.Plan(ctx, invalid, Options{})
	var validationErr *parser.SpecValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestExecute(t *testing.T) {
	srv := apiServer(t)
	p := New(config.Default(), nil, nil)
	ctx := context.Background()

	plan, err := p.Plan(ctx, writeSpec(t, srv.URL), Options{
		Counts: testcase.Counts{Positive: 1, Negative: 1, Edge: 1},
	})
	require.NoError(t, err)

	report, err := p.Execute(ctx, plan, "", nil)
	require.NoError(t, err)

	assert.Equal(t, plan.RunID, report.RunID)
	assert.Equal(t, srv.URL, report.BaseURL)
	require.Len(t, report.Results, 6)
	assert.Equal(t, 6, report.Summary.Total)
	assert.Equal(t, 2, report.Summary.Passed)
	assert.Equal(t, 4, report.Summary.Failed)

	assert.Equal(t, types.VerdictPass, report.Results[0].Verdict)
	assert.Equal(t, types.VerdictFail, report.Results[1].Verdict)
	require.NotNil(t, report.Results[3].ActualStatus)
	assert.Equal(t, 404, *report.Results[3].ActualStatus)
}

func TestResolveBaseURL(t *testing.T) {
	cfg := config.Default()
	p := New(cfg, nil, nil)
	plan := &Plan{BaseURL: "http://declared"}

	got, err := p.ResolveBaseURL(plan, "http://explicit")
	require.NoError(t, err)
	assert.Equal(t, "http://explicit", got)

	cfg.Environment.BaseURL = "http://configured"
	got, err = p.ResolveBaseURL(plan, "")
	require.NoError(t, err)
	assert.Equal(t, "http://configured", got)

	cfg.Environment.BaseURL = ""
	got, err = p.ResolveBaseURL(plan, "")
	require.NoError(t, err)
	assert.Equal(t, "http://declared", got)

	_, err = p.ResolveBaseURL(&Plan{}, "")
	assert.ErrorIs(t, err, ErrNoBaseURL)
}
