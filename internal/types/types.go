package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Endpoint is the normalized descriptor of one (path, method) pair of an API
// document. All fields are always present: missing optional values become
// their empty form.
type Endpoint struct {
	Path        string                 `json:"endpoint"`
	Method      string                 `json:"method"`
	Summary     string                 `json:"summary"`
	Parameters  []interface{}          `json:"parameters"`
	RequestBody map[string]interface{} `json:"request_body"`
	Responses   map[string]interface{} `json:"responses"`
}

// Key returns the "METHOD /path" form used to index fixtures and logs.
func (e Endpoint) Key() string {
	return EndpointKey(e.Method, e.Path)
}

// EndpointKey joins a method and a path template.
func EndpointKey(method, path string) string {
	return fmt.Sprintf("%s %s", strings.ToUpper(method), path)
}

// EndpointTestData represents request fixtures for a specific endpoint
type EndpointTestData struct {
	PathParams  map[string]interface{} `json:"path_params,omitempty"`
	QueryParams map[string]interface{} `json:"query_params,omitempty"`
	Headers     map[string]string      `json:"headers,omitempty"`
}

// TestCase is a single planned scenario, independent of the generator that
// produced it.
type TestCase struct {
	Endpoint       string                 `json:"endpoint"`
	Method         string                 `json:"method"`
	Scenario       string                 `json:"scenario"`
	Description    string                 `json:"description"`
	ExpectedStatus int                    `json:"expected_status"`
	RequestBody    map[string]interface{} `json:"request_body"`
}

// UnmarshalJSON accepts the loose shapes produced by text generation models:
// expected_status as a number or a numeric string, request_body as any JSON
// object or null.
func (tc *TestCase) UnmarshalJSON(data []byte) error {
	var raw struct {
		Endpoint       string          `json:"endpoint"`
		Method         string          `json:"method"`
		Scenario       string          `json:"scenario"`
		Description    string          `json:"description"`
		ExpectedStatus json.RawMessage `json:"expected_status"`
		RequestBody    json.RawMessage `json:"request_body"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	status, err := decodeStatus(raw.ExpectedStatus)
	if err != nil {
		return err
	}

	var body map[string]interface{}
	if len(raw.RequestBody) > 0 && string(raw.RequestBody) != "null" {
		if err := json.Unmarshal(raw.RequestBody, &body); err != nil {
			return fmt.Errorf("request_body: %w", err)
		}
	}

	*tc = TestCase{
		Endpoint:       raw.Endpoint,
		Method:         raw.Method,
		Scenario:       raw.Scenario,
		Description:    raw.Description,
		ExpectedStatus: status,
		RequestBody:    body,
	}
	return nil
}

func decodeStatus(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expected_status: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected_status: %q is not a status code", s)
	}
	return n, nil
}

// Verdict is the outcome category of one executed test case.
type Verdict string

const (
	VerdictPass    Verdict = "PASS"
	VerdictFail    Verdict = "FAIL"
	VerdictSkipped Verdict = "SKIPPED"
	VerdictError   Verdict = "ERROR"
)

// TestResult is the outcome of executing one TestCase.
type TestResult struct {
	Endpoint       string  `json:"endpoint"`
	Method         string  `json:"method"`
	Scenario       string  `json:"scenario"`
	ExpectedStatus int     `json:"expected_status"`
	ActualStatus   *int    `json:"actual_status"`
	Verdict        Verdict `json:"-"`
	Reason         string  `json:"-"`
}

// Result renders the verdict the way reports show it: PASS, FAIL,
// "SKIPPED (reason)" or "ERROR: message".
func (r TestResult) Result() string {
	switch r.Verdict {
	case VerdictSkipped:
		if r.Reason == "" {
			return string(VerdictSkipped)
		}
		return fmt.Sprintf("%s (%s)", VerdictSkipped, r.Reason)
	case VerdictError:
		if r.Reason == "" {
			return string(VerdictError)
		}
		return fmt.Sprintf("%s: %s", VerdictError, r.Reason)
	default:
		return string(r.Verdict)
	}
}

// MarshalJSON adds the rendered result field.
func (r TestResult) MarshalJSON() ([]byte, error) {
	type plain TestResult
	return json.Marshal(struct {
		plain
		Result string `json:"result"`
	}{plain(r), r.Result()})
}

// StatusPtr returns a pointer to a copy of code.
func StatusPtr(code int) *int {
	return &code
}
