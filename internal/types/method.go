package types

import "strings"

// Method is the closed set of HTTP verbs the executor can dispatch.
// Anything else parses to MethodUnsupported.
type Method int

const (
	MethodUnsupported Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
)

// ParseMethod maps a verb, in any casing, to its Method tag.
func ParseMethod(s string) Method {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	default:
		return MethodUnsupported
	}
}

// String returns the upper-case verb, or "UNSUPPORTED".
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNSUPPORTED"
	}
}

// HasBody reports whether requests with this method carry a JSON payload.
func (m Method) HasBody() bool {
	switch m {
	case MethodPost, MethodPut:
		return true
	case MethodGet, MethodDelete, MethodUnsupported:
		return false
	default:
		return false
	}
}
