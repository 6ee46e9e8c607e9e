package parser

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"

	"oas-testgen/internal/logger"
	"oas-testgen/internal/types"
)

// operationKeys are the path item keys that describe an operation. Other
// keys (parameters, summary, servers, $ref, extensions) are not endpoints.
var operationKeys = map[string]bool{
	"get":     true,
	"put":     true,
	"post":    true,
	"delete":  true,
	"options": true,
	"head":    true,
	"patch":   true,
	"trace":   true,
}

// ErrNoServer is returned by BaseURL when the document declares no server.
var ErrNoServer = errors.New("no server information found in the document")

// Extractor is the single reader of the document shape. It must only be
// given documents that passed validation.
type Extractor struct {
	logger *logger.Logger
}

// NewExtractor creates a new Extractor
func NewExtractor(log *logger.Logger) *Extractor {
	return &Extractor{logger: logger.OrNop(log)}
}

// ExtractEndpoints returns one descriptor per (path, method) pair in
// document order.
func (e *Extractor) ExtractEndpoints(doc *Document) []types.Endpoint {
	endpoints := make([]types.Endpoint, 0)
	swagger2 := doc.Dialect() == DialectSwagger2
	consumes := firstScalar(doc.Lookup("consumes"), "application/json")

	eachPair(doc.Lookup("paths"), func(path string, item *yaml.Node) {
		eachPair(item, func(key string, operation *yaml.Node) {
			if !operationKeys[strings.ToLower(key)] {
				return
			}
			endpoint := extractOperation(path, key, operation)
			if swagger2 && len(endpoint.RequestBody) == 0 {
				endpoint.RequestBody = bodyParameter(operation, firstScalar(mappingValue(operation, "consumes"), consumes))
			}
			endpoints = append(endpoints, endpoint)
		})
	})

	e.logger.Info("Extractor", "Extracted %d endpoints from %s", len(endpoints), doc.Source)
	return endpoints
}

func extractOperation(path, method string, operation *yaml.Node) types.Endpoint {
	endpoint := types.Endpoint{
		Path:        path,
		Method:      strings.ToUpper(method),
		Summary:     "",
		Parameters:  make([]interface{}, 0),
		RequestBody: mapValue(mappingValue(operation, "requestBody")),
		Responses:   mapValue(mappingValue(operation, "responses")),
	}

	if n := mappingValue(operation, "summary"); n != nil && n.Kind == yaml.ScalarNode {
		endpoint.Summary = n.Value
	}
	if params, ok := nodeValue(mappingValue(operation, "parameters")).([]interface{}); ok {
		endpoint.Parameters = params
	}
	return endpoint
}

// bodyParameter maps a Swagger 2.0 "in: body" parameter onto the OpenAPI 3
// requestBody shape, so both dialects describe payloads the same way.
func bodyParameter(operation *yaml.Node, mediaType string) map[string]interface{} {
	params := resolveAlias(mappingValue(operation, "parameters"))
	if params == nil || params.Kind != yaml.SequenceNode {
		return map[string]interface{}{}
	}
	for _, param := range params.Content {
		in := mappingValue(param, "in")
		if in == nil || in.Value != "body" {
			continue
		}
		body := map[string]interface{}{
			"content": map[string]interface{}{
				mediaType: map[string]interface{}{"schema": mapValue(mappingValue(param, "schema"))},
			},
		}
		if required, ok := nodeValue(mappingValue(param, "required")).(bool); ok {
			body["required"] = required
		}
		if desc := mappingValue(param, "description"); desc != nil && desc.Kind == yaml.ScalarNode {
			body["description"] = desc.Value
		}
		return body
	}
	return map[string]interface{}{}
}

// firstScalar returns the first scalar of a sequence node, or fallback.
func firstScalar(node *yaml.Node, fallback string) string {
	node = resolveAlias(node)
	if node == nil || node.Kind != yaml.SequenceNode || len(node.Content) == 0 {
		return fallback
	}
	if first := resolveAlias(node.Content[0]); first.Kind == yaml.ScalarNode && first.Value != "" {
		return first.Value
	}
	return fallback
}

// ExtractAuthentication returns the declared security schemes by name.
// A document without schemes yields an empty map.
func (e *Extractor) ExtractAuthentication(doc *Document) map[string]interface{} {
	var schemes map[string]interface{}
	switch doc.Dialect() {
	case DialectSwagger2:
		schemes = mapValue(doc.Lookup("securityDefinitions"))
	default:
		schemes = mapValue(doc.Lookup("components", "securitySchemes"))
	}
	e.logger.Debug("Extractor", "Extracted %d security schemes from %s", len(schemes), doc.Source)
	return schemes
}

// BaseURL determines the service base URL declared by the document:
// servers[0].url for OpenAPI 3, scheme://host/basePath for Swagger 2.
// Relative server URLs are resolved against a remote document source.
func BaseURL(doc *Document) (string, error) {
	if servers := doc.Lookup("servers"); servers != nil && servers.Kind == yaml.SequenceNode && len(servers.Content) > 0 {
		if n := mappingValue(servers.Content[0], "url"); n != nil && n.Value != "" {
			return resolveServerURL(doc.Source, n.Value)
		}
	}

	if host := doc.Lookup("host"); host != nil && host.Value != "" {
		scheme := "https"
		if schemes, ok := nodeValue(doc.Lookup("schemes")).([]interface{}); ok && len(schemes) > 0 {
			scheme = fmt.Sprint(schemes[0])
			for _, s := range schemes {
				if s == "https" {
					scheme = "https"
					break
				}
			}
		}
		basePath := ""
		if n := doc.Lookup("basePath"); n != nil {
			basePath = n.Value
		}
		return strings.TrimRight(fmt.Sprintf("%s://%s%s", scheme, host.Value, basePath), "/"), nil
	}

	return "", ErrNoServer
}

func resolveServerURL(source, server string) (string, error) {
	ref, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", server, err)
	}
	if !ref.IsAbs() && IsRemote(source) {
		base, err := url.Parse(source)
		if err != nil {
			return "", fmt.Errorf("invalid spec source %q: %w", source, err)
		}
		ref = base.ResolveReference(ref)
	}
	return strings.TrimRight(ref.String(), "/"), nil
}
