package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"oas-testgen/internal/types"
)

// SQLPrefix marks a fixture value that must be resolved by a database query.
const SQLPrefix = "sql:"

// Template represents the structure of a fixtures file
type Template struct {
	Endpoints map[string]types.EndpointTestData `json:"endpoints"`
}

// Set is a loaded fixtures file indexed by "METHOD /path".
type Set struct {
	endpoints map[string]types.EndpointTestData
}

// Querier returns the first column of the first row of a query.
type Querier interface {
	QueryValue(ctx context.Context, query string) (interface{}, error)
}

// Load reads a JSON or YAML fixtures file. The file is either a Template or
// a bare map of endpoint keys.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var tree interface{}
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to parse fixtures: %w", err)
		}
		if data, err = json.Marshal(tree); err != nil {
			return nil, fmt.Errorf("failed to parse fixtures: %w", err)
		}
	}
	return Parse(data)
}

// Parse decodes fixtures from JSON.
func Parse(data []byte) (*Set, error) {
	var template Template
	if err := json.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if template.Endpoints == nil {
		// bare {"GET /pet": {...}} form
		if err := json.Unmarshal(data, &template.Endpoints); err != nil {
			return nil, fmt.Errorf("failed to parse fixtures: %w", err)
		}
	}
	return NewSet(template.Endpoints), nil
}

// NewSet indexes endpoints, normalizing the method part of every key.
func NewSet(endpoints map[string]types.EndpointTestData) *Set {
	s := &Set{endpoints: make(map[string]types.EndpointTestData, len(endpoints))}
	for key, data := range endpoints {
		method, path := splitKey(key)
		s.endpoints[types.EndpointKey(method, path)] = data
	}
	return s
}

// Lookup returns the fixtures for an endpoint template.
func (s *Set) Lookup(method, path string) (types.EndpointTestData, bool) {
	if s == nil {
		return types.EndpointTestData{}, false
	}
	data, ok := s.endpoints[types.EndpointKey(method, path)]
	return data, ok
}

// Keys returns the endpoint keys in sorted order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.endpoints))
	for key := range s.endpoints {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ResolveSQL replaces every "sql:<query>" value with the query result. The
// first failing query aborts resolution.
func (s *Set) ResolveSQL(ctx context.Context, q Querier) error {
	for key, data := range s.endpoints {
		if err := resolveValues(ctx, q, data.PathParams); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := resolveValues(ctx, q, data.QueryParams); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		for name, value := range data.Headers {
			query, ok := sqlQuery(value)
			if !ok {
				continue
			}
			resolved, err := q.QueryValue(ctx, query)
			if err != nil {
				return fmt.Errorf("%s header %s: %w", key, name, err)
			}
			data.Headers[name] = fmt.Sprint(resolved)
		}
	}
	return nil
}

func resolveValues(ctx context.Context, q Querier, values map[string]interface{}) error {
	for name, value := range values {
		str, ok := value.(string)
		if !ok {
			continue
		}
		query, ok := sqlQuery(str)
		if !ok {
			continue
		}
		resolved, err := q.QueryValue(ctx, query)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		values[name] = resolved
	}
	return nil
}

func sqlQuery(value string) (string, bool) {
	if !strings.HasPrefix(value, SQLPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(value, SQLPrefix)), true
}

// splitKey parses an endpoint string into method and path
func splitKey(key string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(key), " ", 2)
	if len(parts) != 2 {
		return "", key
	}
	return parts[0], strings.TrimSpace(parts[1])
}
