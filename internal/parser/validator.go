package parser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/xeipuuv/gojsonschema"

	"oas-testgen/internal/logger"
)

// structureSchema checks the top-level shape shared by Swagger 2.0 and
// OpenAPI 3.x before the dialect-specific validation runs.
const structureSchema = `{
  "type": "object",
  "required": ["info", "paths"],
  "oneOf": [
    {"required": ["openapi"]},
    {"required": ["swagger"]}
  ],
  "properties": {
    "openapi": {"type": "string", "pattern": "^3\\."},
    "swagger": {"type": "string", "enum": ["2.0"]},
    "info": {
      "type": "object",
      "required": ["title", "version"]
    },
    "servers": {
      "type": "array",
      "items": {"type": "object", "required": ["url"]}
    },
    "paths": {
      "type": "object",
      "additionalProperties": {"type": "object"}
    },
    "components": {
      "type": "object",
      "properties": {
        "schemas": {"type": "object"},
        "securitySchemes": {"type": "object"}
      }
    },
    "securityDefinitions": {"type": "object"}
  }
}`

// Validator checks documents against the API description schema they
// declare. It never repairs a document.
type Validator struct {
	logger *logger.Logger
	schema gojsonschema.JSONLoader
}

// NewValidator creates a new Validator
func NewValidator(log *logger.Logger) *Validator {
	return &Validator{
		logger: logger.OrNop(log),
		schema: gojsonschema.NewStringLoader(structureSchema),
	}
}

// Validate returns true when doc conforms, or a *SpecValidationError.
func (v *Validator) Validate(ctx context.Context, doc *Document) (bool, error) {
	if doc == nil || doc.Root() == nil {
		return false, &SpecValidationError{Violations: []string{"document is empty"}}
	}

	tree := doc.Map()
	// Version fields are compared as written: an unquoted YAML 2.0 would
	// otherwise decode as a number.
	for _, key := range []string{"openapi", "swagger"} {
		if n := doc.Lookup(key); n != nil {
			tree[key] = n.Value
		}
	}

	if err := v.validateStructure(tree); err != nil {
		v.logger.Warn("Validator", "Structural validation failed for %s: %v", doc.Source, err)
		return false, err
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return false, &SpecValidationError{Err: fmt.Errorf("failed to encode document: %w", err)}
	}

	switch doc.Dialect() {
	case DialectOpenAPI3:
		err = validateOpenAPI3(ctx, data)
	case DialectSwagger2:
		err = validateSwagger2(ctx, data)
	default:
		err = &SpecValidationError{Violations: []string{"document declares neither openapi 3.x nor swagger 2.0"}}
	}
	if err != nil {
		v.logger.Warn("Validator", "Schema validation failed for %s: %v", doc.Source, err)
		return false, err
	}

	v.logger.Info("Validator", "Spec %s is a valid %s document", doc.Source, doc.Dialect())
	return true, nil
}

func (v *Validator) validateStructure(tree map[string]interface{}) error {
	result, err := gojsonschema.Validate(v.schema, gojsonschema.NewGoLoader(tree))
	if err != nil {
		return &SpecValidationError{Err: fmt.Errorf("structural check failed: %w", err)}
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return &SpecValidationError{Violations: violations}
}

func validateOpenAPI3(ctx context.Context, data []byte) error {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return &SpecValidationError{Err: fmt.Errorf("failed to load OpenAPI document: %w", err)}
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return &SpecValidationError{Err: err}
	}
	return nil
}

func validateSwagger2(ctx context.Context, data []byte) error {
	var doc2 openapi2.T
	if err := json.Unmarshal(data, &doc2); err != nil {
		return &SpecValidationError{Err: fmt.Errorf("failed to load Swagger document: %w", err)}
	}

	doc3, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return &SpecValidationError{Err: fmt.Errorf("failed to convert Swagger document: %w", err)}
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	if err := loader.ResolveRefsIn(doc3, nil); err != nil {
		return &SpecValidationError{Err: fmt.Errorf("failed to resolve references: %w", err)}
	}
	if err := doc3.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return &SpecValidationError{Err: err}
	}
	return nil
}
