package parser

import (
	"fmt"
	"strings"
)

// SpecFetchError reports that the API description could not be retrieved.
type SpecFetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *SpecFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch spec from %s: unexpected status code %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch spec from %s: %v", e.Source, e.Err)
}

func (e *SpecFetchError) Unwrap() error { return e.Err }

// SpecParseError reports that the content is neither valid JSON nor YAML.
type SpecParseError struct {
	Source    string
	StrictErr error
	LaxErr    error
}

func (e *SpecParseError) Error() string {
	return fmt.Sprintf("failed to parse spec from %s: json: %v; yaml: %v", e.Source, e.StrictErr, e.LaxErr)
}

func (e *SpecParseError) Unwrap() error { return e.LaxErr }

// SpecValidationError reports that the document does not conform to the
// API description schema it declares.
type SpecValidationError struct {
	Violations []string
	Err        error
}

func (e *SpecValidationError) Error() string {
	if len(e.Violations) > 0 {
		return "spec validation failed: " + strings.Join(e.Violations, "; ")
	}
	return fmt.Sprintf("spec validation failed: %v", e.Err)
}

func (e *SpecValidationError) Unwrap() error { return e.Err }
