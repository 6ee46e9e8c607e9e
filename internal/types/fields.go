package types

import (
	"encoding/json"
	"strconv"
)

// Field is one named, string-rendered column of a flat record.
type Field struct {
	Name  string
	Value string
}

// Fields returns the case as ordered columns.
func (tc TestCase) Fields() []Field {
	return []Field{
		{"endpoint", tc.Endpoint},
		{"method", tc.Method},
		{"scenario", tc.Scenario},
		{"description", tc.Description},
		{"expected_status", strconv.Itoa(tc.ExpectedStatus)},
		{"request_body", encodeBody(tc.RequestBody)},
	}
}

// Fields returns the result as ordered columns. An absent actual status is
// an empty string.
func (r TestResult) Fields() []Field {
	actual := ""
	if r.ActualStatus != nil {
		actual = strconv.Itoa(*r.ActualStatus)
	}
	return []Field{
		{"endpoint", r.Endpoint},
		{"method", r.Method},
		{"scenario", r.Scenario},
		{"expected_status", strconv.Itoa(r.ExpectedStatus)},
		{"actual_status", actual},
		{"result", r.Result()},
	}
}

func encodeBody(body map[string]interface{}) string {
	if body == nil {
		return ""
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return string(data)
}
