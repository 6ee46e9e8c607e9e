package fixtures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"oas-testgen/internal/types"
)

// TemplateFile is the name WriteTemplate writes into its directory.
const TemplateFile = "testdata_template.json"

// GenerateTemplate builds a fixtures skeleton with sample values for every
// path, query and header parameter of the endpoints.
func GenerateTemplate(endpoints []types.Endpoint) *Template {
	template := &Template{Endpoints: make(map[string]types.EndpointTestData, len(endpoints))}
	for _, endpoint := range endpoints {
		template.Endpoints[endpoint.Key()] = endpointTestData(endpoint)
	}
	return template
}

// WriteTemplate writes template as indented JSON into dir and returns the
// file path.
func WriteTemplate(template *Template, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal template: %w", err)
	}

	outputPath := filepath.Join(dir, TemplateFile)
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write template file: %w", err)
	}
	return outputPath, nil
}

func endpointTestData(endpoint types.Endpoint) types.EndpointTestData {
	data := types.EndpointTestData{
		PathParams:  make(map[string]interface{}),
		QueryParams: make(map[string]interface{}),
		Headers: map[string]string{
			"Accept": "application/json",
		},
	}

	for _, raw := range endpoint.Parameters {
		param, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := param["name"].(string)
		if name == "" {
			continue
		}

		// OpenAPI 3 nests the type under schema; Swagger 2 keeps it inline.
		schema, ok := param["schema"].(map[string]interface{})
		if !ok {
			schema = param
		}

		switch param["in"] {
		case "path":
			data.PathParams[name] = sampleValue(schema)
		case "query":
			data.QueryParams[name] = sampleValue(schema)
		case "header":
			if value := sampleValue(schema); value != nil {
				data.Headers[name] = fmt.Sprint(value)
			}
		}
	}
	return data
}

// sampleValue generates a sample value based on a schema's type and format
func sampleValue(schema map[string]interface{}) interface{} {
	if enum, ok := schema["enum"].([]interface{}); ok && len(enum) > 0 {
		return enum[0]
	}
	if example, ok := schema["example"]; ok {
		return example
	}

	typeStr, _ := schema["type"].(string)
	format, _ := schema["format"].(string)
	switch typeStr {
	case "string":
		switch format {
		case "email":
			return "test@example.com"
		case "date":
			return "2024-01-01"
		case "date-time":
			return "2024-01-01T12:00:00Z"
		case "uuid":
			return "123e4567-e89b-12d3-a456-426614174000"
		case "uri":
			return "https://example.com"
		case "ipv4":
			return "192.168.1.1"
		case "ipv6":
			return "2001:db8::1"
		}
		if pattern, ok := schema["pattern"].(string); ok {
			// Generate a simple string that matches common patterns
			switch {
			case strings.Contains(pattern, "\\d"):
				return "12345"
			case strings.Contains(pattern, "[a-zA-Z]"):
				return "abc"
			}
		}
		return "sample_string"
	case "number":
		if format == "double" {
			return 123.456789
		}
		return 123.45
	case "integer":
		if format == "int64" {
			return 123456789
		}
		return 123
	case "boolean":
		return true
	case "array":
		items, _ := schema["items"].(map[string]interface{})
		if items == nil {
			return []interface{}{"sample_item"}
		}
		return []interface{}{sampleValue(items)}
	case "object":
		properties, ok := schema["properties"].(map[string]interface{})
		if !ok {
			return map[string]interface{}{"key": "value"}
		}
		result := make(map[string]interface{}, len(properties))
		for key, prop := range properties {
			if propMap, ok := prop.(map[string]interface{}); ok {
				result[key] = sampleValue(propMap)
			}
		}
		return result
	}
	return nil
}
