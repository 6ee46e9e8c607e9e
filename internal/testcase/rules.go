package testcase

import (
	"fmt"
	"sort"
	"strconv"

	"oas-testgen/internal/types"
)

// Category is a test case family. Cases are always emitted in the order
// positive, negative, edge.
type Category string

const (
	CategoryPositive Category = "positive"
	CategoryNegative Category = "negative"
	CategoryEdge     Category = "edge"
)

// Counts is the number of cases requested per category.
type Counts struct {
	Positive int
	Negative int
	Edge     int
}

// Total returns the number of cases per endpoint.
func (c Counts) Total() int {
	return c.Positive + c.Negative + c.Edge
}

// StatusPolicy picks the expected status for a category of an endpoint.
type StatusPolicy func(endpoint types.Endpoint, category Category) int

// FixedStatus is the default heuristic: 200 for positive and edge cases,
// 400 for negative cases, regardless of declared responses.
func FixedStatus(_ types.Endpoint, category Category) int {
	if category == CategoryNegative {
		return 400
	}
	return 200
}

// DeclaredStatus targets the lowest declared 2xx (positive, edge) or 4xx
// (negative) response of the endpoint, falling back to FixedStatus.
func DeclaredStatus(endpoint types.Endpoint, category Category) int {
	low, high := 200, 299
	if category == CategoryNegative {
		low, high = 400, 499
	}

	codes := make([]int, 0, len(endpoint.Responses))
	for key := range endpoint.Responses {
		code, err := strconv.Atoi(key)
		if err != nil || code < low || code > high {
			continue
		}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return FixedStatus(endpoint, category)
	}
	sort.Ints(codes)
	return codes[0]
}

// RuleGenerator deterministically expands endpoints into test cases.
// It performs no I/O and uses no randomness.
type RuleGenerator struct {
	counts Counts
	status StatusPolicy
}

// NewRuleGenerator creates a rule based generator. A nil policy means
// FixedStatus. Negative counts are treated as zero.
func NewRuleGenerator(counts Counts, status StatusPolicy) *RuleGenerator {
	if status == nil {
		status = FixedStatus
	}
	counts = Counts{
		Positive: max(counts.Positive, 0),
		Negative: max(counts.Negative, 0),
		Edge:     max(counts.Edge, 0),
	}
	return &RuleGenerator{counts: counts, status: status}
}

// Generate returns len(endpoints) * counts.Total() cases in
// endpoint, category, index order.
func (g *RuleGenerator) Generate(endpoints []types.Endpoint) []types.TestCase {
	cases := make([]types.TestCase, 0, len(endpoints)*g.counts.Total())
	for _, endpoint := range endpoints {
		cases = g.expand(cases, endpoint, CategoryPositive, g.counts.Positive,
			"Verify %s %s returns a successful response.")
		cases = g.expand(cases, endpoint, CategoryNegative, g.counts.Negative,
			"Verify %s %s returns an error when required inputs are missing or invalid.")
		cases = g.expand(cases, endpoint, CategoryEdge, g.counts.Edge,
			"Verify %s %s handles boundary condition inputs appropriately.")
	}
	return cases
}

func (g *RuleGenerator) expand(cases []types.TestCase, endpoint types.Endpoint, category Category, count int, intent string) []types.TestCase {
	status := g.status(endpoint, category)
	for i := 1; i <= count; i++ {
		cases = append(cases, types.TestCase{
			Endpoint:       endpoint.Path,
			Method:         endpoint.Method,
			Scenario:       fmt.Sprintf("%s_variant_%d", category, i),
			Description:    fmt.Sprintf("Rule-based %s test variant %d: "+intent, category, i, endpoint.Method, endpoint.Path),
			ExpectedStatus: status,
			RequestBody:    endpoint.RequestBody,
		})
	}
	return cases
}
