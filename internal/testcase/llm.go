package testcase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"oas-testgen/internal/llm"
	"oas-testgen/internal/logger"
	"oas-testgen/internal/types"
)

// LLMGenerator asks a text generation service for test cases, one call per
// endpoint. It never returns an error: any failure yields a single default
// case for the endpoint.
type LLMGenerator struct {
	client      llm.Client
	counts      Counts
	temperature float32
	maxTokens   int
	logger      *logger.Logger
}

// NewLLMGenerator creates a generator backed by client.
func NewLLMGenerator(client llm.Client, counts Counts, temperature float32, maxTokens int, log *logger.Logger) *LLMGenerator {
	return &LLMGenerator{
		client:      client,
		counts:      counts,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger.OrNop(log),
	}
}

// Generate returns at least one test case for endpoint.
func (g *LLMGenerator) Generate(ctx context.Context, endpoint types.Endpoint) []types.TestCase {
	prompt := g.buildPrompt(endpoint)

	text, err := g.client.Complete(ctx, prompt, g.temperature, g.maxTokens)
	g.logger.LogLLMInteraction("GenerateTestCases", endpoint.Key(), text, err)
	if err != nil {
		return []types.TestCase{defaultCase(endpoint, err.Error())}
	}

	result := ParseGenerated(text)
	if !result.OK() {
		g.logger.Warn("LLM", "Falling back to default case for %s: %s", endpoint.Key(), result.Reason)
		return []types.TestCase{defaultCase(endpoint, result.Reason)}
	}

	for i := range result.Cases {
		normalizeCase(&result.Cases[i], endpoint, i+1)
	}
	return result.Cases
}

func (g *LLMGenerator) buildPrompt(endpoint types.Endpoint) string {
	var sb strings.Builder

	sb.WriteString("Generate a JSON array of test cases for the given API endpoint. ")
	fmt.Fprintf(&sb, "There should be %d positive test cases, %d negative test cases, and %d edge test cases (a total of %d).\n",
		g.counts.Positive, g.counts.Negative, g.counts.Edge, g.counts.Total())
	sb.WriteString("Each test case should be a JSON object with the following keys: ")
	sb.WriteString("'scenario', 'endpoint', 'method', 'description', 'expected_status', and optionally 'request_body'.\n\n")

	fmt.Fprintf(&sb, "Endpoint: %s\n", endpoint.Path)
	fmt.Fprintf(&sb, "Method: %s\n", endpoint.Method)
	if len(endpoint.Parameters) > 0 {
		fmt.Fprintf(&sb, "Parameters: %s\n", indentJSON(endpoint.Parameters))
	}
	if len(endpoint.RequestBody) > 0 {
		fmt.Fprintf(&sb, "Request Body: %s\n", indentJSON(endpoint.RequestBody))
	}
	if len(endpoint.Responses) > 0 {
		fmt.Fprintf(&sb, "Responses: %s\n", indentJSON(endpoint.Responses))
	}

	sb.WriteString("\nGenerate the test cases as described:\n")
	sb.WriteString("- Positive: Use valid inputs and expect a successful response (e.g., status 200).\n")
	sb.WriteString("- Negative: Use invalid or missing inputs and expect an error response (e.g., status 400).\n")
	sb.WriteString("- Edge: Use boundary or unusual inputs and expect an appropriate response.\n")
	sb.WriteString("Return the result as a single valid JSON array.")
	return sb.String()
}

func indentJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// normalizeCase fills fields the model left out from the endpoint.
func normalizeCase(tc *types.TestCase, endpoint types.Endpoint, index int) {
	if tc.Endpoint == "" {
		tc.Endpoint = endpoint.Path
	}
	if tc.Method == "" {
		tc.Method = endpoint.Method
	}
	tc.Method = strings.ToUpper(strings.TrimSpace(tc.Method))
	if tc.Scenario == "" {
		tc.Scenario = fmt.Sprintf("llm_case_%d", index)
	}
	if tc.ExpectedStatus == 0 {
		tc.ExpectedStatus = 200
	}
}

func defaultCase(endpoint types.Endpoint, reason string) types.TestCase {
	return types.TestCase{
		Endpoint:       endpoint.Path,
		Method:         endpoint.Method,
		Scenario:       "default",
		Description:    fmt.Sprintf("LLM generated test case (parsing error): %s", reason),
		ExpectedStatus: 200,
		RequestBody:    endpoint.RequestBody,
	}
}
