package testcase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"oas-testgen/internal/types"
)

// ParseResult is the typed outcome of reading generated text: either a
// non-empty list of cases, or the reason a fallback record is needed.
type ParseResult struct {
	Cases  []types.TestCase
	Reason string
}

// OK reports whether parsing produced usable cases.
func (r ParseResult) OK() bool {
	return r.Reason == "" && len(r.Cases) > 0
}

func parsed(cases []types.TestCase) ParseResult {
	return ParseResult{Cases: cases}
}

func fallback(reason string) ParseResult {
	return ParseResult{Reason: reason}
}

// ParseGenerated reads generated text in three stages: strip formatting,
// decode JSON, normalize the shape to a list.
func ParseGenerated(text string) ParseResult {
	body := stripFences(text)
	if body == "" {
		return fallback("empty response")
	}

	raw, err := decode(body)
	if err != nil {
		return fallback(err.Error())
	}

	cases, err := normalizeShape(raw)
	if err != nil {
		return fallback(err.Error())
	}
	return parsed(cases)
}

// stripFences removes surrounding whitespace, a leading and a trailing
// markdown code fence, and any prose around the JSON payload.
func stripFences(text string) string {
	text = strings.TrimSpace(text)

	if rest, ok := strings.CutPrefix(text, "```"); ok {
		// drop the language tag on the opening fence line
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "[{") {
			rest = rest[nl+1:]
		} else {
			rest = strings.TrimPrefix(rest, "json")
		}
		text = strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutSuffix(text, "```"); ok {
		text = strings.TrimSpace(rest)
	}

	// Keep the span from the first bracket to its last closing counterpart.
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return text
	}
	closer := byte(']')
	if text[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return text[start:]
	}
	return text[start : end+1]
}

func decode(body string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return raw, nil
}

// normalizeShape accepts an array of cases or a single case object.
func normalizeShape(raw json.RawMessage) ([]types.TestCase, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var cases []types.TestCase
		if err := json.Unmarshal(raw, &cases); err != nil {
			return nil, fmt.Errorf("invalid test case array: %w", err)
		}
		if len(cases) == 0 {
			return nil, errors.New("empty test case array")
		}
		return cases, nil
	case strings.HasPrefix(trimmed, "{"):
		var single types.TestCase
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("invalid test case object: %w", err)
		}
		return []types.TestCase{single}, nil
	default:
		return nil, fmt.Errorf("expected a JSON array or object, got %.20s", trimmed)
	}
}
