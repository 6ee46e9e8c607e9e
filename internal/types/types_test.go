package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
	}{
		{"GET", MethodGet},
		{"post", MethodPost},
		{" Put ", MethodPut},
		{"delete", MethodDelete},
		{"PATCH", MethodUnsupported},
		{"", MethodUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMethod(tt.in))
		})
	}
}

func TestMethodHasBody(t *testing.T) {
	assert.True(t, MethodPost.HasBody())
	assert.True(t, MethodPut.HasBody())
	assert.False(t, MethodGet.HasBody())
	assert.False(t, MethodDelete.HasBody())
	assert.False(t, MethodUnsupported.HasBody())
}

func TestTestCaseUnmarshalLooseStatus(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		status int
	}{
		{"number", `{"scenario":"a","expected_status":201}`, 201},
		{"string", `{"scenario":"a","expected_status":"404"}`, 404},
		{"missing", `{"scenario":"a"}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tc TestCase
			require.NoError(t, json.Unmarshal([]byte(tt.input), &tc))
			assert.Equal(t, tt.status, tc.ExpectedStatus)
		})
	}

	var tc TestCase
	assert.Error(t, json.Unmarshal([]byte(`{"expected_status":"ok"}`), &tc))
}

func TestTestResultRendering(t *testing.T) {
	assert.Equal(t, "PASS", TestResult{Verdict: VerdictPass}.Result())
	assert.Equal(t, "SKIPPED (unsupported HTTP method)",
		TestResult{Verdict: VerdictSkipped, Reason: "unsupported HTTP method"}.Result())
	assert.Equal(t, "ERROR: connection refused",
		TestResult{Verdict: VerdictError, Reason: "connection refused"}.Result())

	data, err := json.Marshal(TestResult{
		Endpoint:       "/ok",
		Method:         "GET",
		Scenario:       "positive_variant_1",
		ExpectedStatus: 200,
		ActualStatus:   StatusPtr(404),
		Verdict:        VerdictFail,
	})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "FAIL", decoded["result"])
	assert.Equal(t, float64(404), decoded["actual_status"])
}
