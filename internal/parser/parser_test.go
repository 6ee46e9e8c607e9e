package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const petstoreJSON = `{
  "openapi": "3.0.3",
  "info": {"title": "Petstore", "version": "1.0.0"},
  "servers": [{"url": "/api/v3"}],
  "paths": {
    "/pet": {
      "put": {
        "summary": "Update an existing pet",
        "requestBody": {
          "content": {"application/json": {"schema": {"type": "object"}}}
        },
        "responses": {"200": {"description": "ok"}, "400": {"description": "bad"}}
      },
      "post": {
        "responses": {"200": {"description": "ok"}}
      }
    },
    "/pet/{petId}": {
      "parameters": [{"name": "petId", "in": "path", "required": true, "schema": {"type": "integer"}}],
      "get": {
        "parameters": [{"name": "petId", "in": "path", "required": true, "schema": {"type": "integer"}}],
        "responses": {"200": {"description": "ok"}}
      }
    },
    "/adopt": {
      "delete": {"responses": {"204": {"description": "gone"}}}
    }
  },
  "components": {
    "securitySchemes": {
      "api_key": {"type": "apiKey", "name": "api_key", "in": "header"}
    }
  }
}`

const petstoreYAML = `swagger: "2.0"
info:
  title: Petstore
  version: 1.0.0
host: petstore.example.com
basePath: /v2
schemes:
  - http
  - https
paths:
  /store/order:
    post:
      summary: Place an order
      parameters:
        - in: body
          name: body
          required: true
          schema:
            type: object
      responses:
        200:
          description: ok
  /store/inventory:
    get:
      responses:
        200:
          description: ok
securityDefinitions:
  petstore_auth:
    type: oauth2
    flow: implicit
    authorizationUrl: https://petstore.example.com/oauth/authorize
    scopes:
      write:pets: modify pets
`

func TestLoaderRemoteJSONAndYAML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/openapi.json":
			_, _ = w.Write([]byte(petstoreJSON))
		case "/swagger.yaml":
			_, _ = w.Write([]byte(petstoreYAML))
		case "/broken":
			_, _ = w.Write([]byte("paths: [unclosed"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	loader := NewLoader(srv.Client(), nil)
	ctx := context.Background()

	doc, err := loader.Load(ctx, srv.URL+"/openapi.json")
	require.NoError(t, err)
	assert.Equal(t, EncodingJSON, doc.Encoding)
	assert.Equal(t, DialectOpenAPI3, doc.Dialect())

	doc, err = loader.Load(ctx, srv.URL+"/swagger.yaml")
	require.NoError(t, err)
	assert.Equal(t, EncodingYAML, doc.Encoding)
	assert.Equal(t, DialectSwagger2, doc.Dialect())

	_, err = loader.Load(ctx, srv.URL+"/missing")
	var fetchErr *SpecFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	_, err = loader.Load(ctx, srv.URL+"/broken")
	var parseErr *SpecParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestLoaderLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "openapi.json")
	require.NoError(t, os.WriteFile(path, []byte(petstoreJSON), 0644))

	doc, err := NewLoader(nil, nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Source)

	_, err = NewLoader(nil, nil).Load(context.Background(), filepath.Join(dir, "nope.json"))
	var fetchErr *SpecFetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestParseRejectsNonMappingRoots(t *testing.T) {
	for _, input := range []string{"not json", "[1, 2]", "", "42"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse("inline", []byte(input))
			var parseErr *SpecParseError
			assert.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestParseJSONPreservesKeyOrder(t *testing.T) {
	doc, err := Parse("inline", []byte(`{"paths": {"/z": {}, "/a": {}, "/m": {}}}`))
	require.NoError(t, err)

	var keys []string
	eachPair(doc.Lookup("paths"), func(key string, _ *yaml.Node) { keys = append(keys, key) })
	assert.Equal(t, []string{"/z", "/a", "/m"}, keys)
}

func TestValidator(t *testing.T) {
	v := NewValidator(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		content string
		valid   bool
	}{
		{"openapi3 json", petstoreJSON, true},
		{"swagger2 yaml", petstoreYAML, true},
		{"missing info", `{"openapi": "3.0.0", "paths": {}}`, false},
		{"paths not an object", `{"openapi": "3.0.0", "info": {"title": "t", "version": "1"}, "paths": []}`, false},
		{"unknown dialect", `{"info": {"title": "t", "version": "1"}, "paths": {}}`, false},
		{"components wrong type", `{"openapi": "3.0.0", "info": {"title": "t", "version": "1"}, "paths": {}, "components": []}`, false},
		{"operation without responses", `{"openapi": "3.0.0", "info": {"title": "t", "version": "1"}, "paths": {"/x": {"get": {"responses": "nope"}}}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.name, []byte(tt.content))
			require.NoError(t, err)

			ok, err := v.Validate(ctx, doc)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var validationErr *SpecValidationError
			assert.True(t, errors.As(err, &validationErr), "got %v", err)
		})
	}
}

func TestExtractEndpointsDocumentOrder(t *testing.T) {
	doc, err := Parse("inline", []byte(petstoreJSON))
	require.NoError(t, err)

	endpoints := NewExtractor(nil).ExtractEndpoints(doc)
	require.Len(t, endpoints, 4)

	got := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		got = append(got, ep.Key())
	}
	assert.Equal(t, []string{"PUT /pet", "POST /pet", "GET /pet/{petId}", "DELETE /adopt"}, got)

	put := endpoints[0]
	assert.Equal(t, "Update an existing pet", put.Summary)
	assert.NotEmpty(t, put.RequestBody)
	assert.Len(t, put.Responses, 2)

	post := endpoints[1]
	assert.Equal(t, "", post.Summary)
	assert.NotNil(t, post.Parameters)
	assert.Empty(t, post.Parameters)
	assert.NotNil(t, post.RequestBody)
	assert.Empty(t, post.RequestBody)

	get := endpoints[2]
	require.Len(t, get.Parameters, 1)
	param, ok := get.Parameters[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "petId", param["name"])
}

func TestExtractSwagger2(t *testing.T) {
	doc, err := Parse("inline", []byte(petstoreYAML))
	require.NoError(t, err)

	e := NewExtractor(nil)
	endpoints := e.ExtractEndpoints(doc)
	require.Len(t, endpoints, 2)
	assert.Equal(t, "POST", endpoints[0].Method)
	assert.Equal(t, "/store/order", endpoints[0].Path)
	assert.Contains(t, endpoints[0].Responses, "200")
	assert.Equal(t, map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{"type": "object"},
			},
		},
	}, endpoints[0].RequestBody)
	assert.Empty(t, endpoints[1].RequestBody)

	auth := e.ExtractAuthentication(doc)
	assert.Contains(t, auth, "petstore_auth")

	base, err := BaseURL(doc)
	require.NoError(t, err)
	assert.Equal(t, "https://petstore.example.com/v2", base)
}

func TestExtractSwagger2BodyMediaType(t *testing.T) {
	doc, err := Parse("inline", []byte(`swagger: "2.0"
info: {title: T, version: "1"}
consumes: [application/xml]
paths:
  /a:
    put:
      parameters:
        - {in: body, name: body, schema: {type: string}}
      responses: {200: {description: ok}}
  /b:
    post:
      consumes: [application/x-www-form-urlencoded]
      parameters:
        - {in: query, name: q, type: string}
        - {in: body, name: body, description: payload, schema: {type: object}}
      responses: {200: {description: ok}}
`))
	require.NoError(t, err)

	endpoints := NewExtractor(nil).ExtractEndpoints(doc)
	require.Len(t, endpoints, 2)
	assert.Contains(t, endpoints[0].RequestBody["content"], "application/xml")
	assert.NotContains(t, endpoints[0].RequestBody, "required")
	assert.Contains(t, endpoints[1].RequestBody["content"], "application/x-www-form-urlencoded")
	assert.Equal(t, "payload", endpoints[1].RequestBody["description"])
	assert.Len(t, endpoints[1].Parameters, 2)
}

func TestExtractAuthenticationEmpty(t *testing.T) {
	doc, err := Parse("inline", []byte(`{"openapi": "3.0.0", "info": {}, "paths": {}}`))
	require.NoError(t, err)

	auth := NewExtractor(nil).ExtractAuthentication(doc)
	assert.NotNil(t, auth)
	assert.Empty(t, auth)
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		content string
		want    string
		wantErr bool
	}{
		{"absolute server", "spec.json", `{"servers": [{"url": "https://api.example.com/v1/"}]}`, "https://api.example.com/v1", false},
		{"relative server remote source", "https://petstore3.example.com/api/v3/openapi.json", `{"servers": [{"url": "/api/v3"}]}`, "https://petstore3.example.com/api/v3", false},
		{"relative server local source", "spec.json", `{"servers": [{"url": "/api/v3"}]}`, "/api/v3", false},
		{"swagger host only", "spec.json", `{"host": "example.com"}`, "https://example.com", false},
		{"nothing", "spec.json", `{"paths": {}}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.source, []byte(tt.content))
			require.NoError(t, err)

			got, err := BaseURL(doc)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoServer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
