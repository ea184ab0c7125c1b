package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func nullable(t string) map[string]any {
	return map[string]any{"type": []any{t, "null"}}
}

// ResultJSONSchema describes the serialized Result that downstream consumers
// key off. Field names must not change.
func ResultJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"item", "specification", "quantity", "unitPrice", "supplyAmount", "vat"},
		"properties": map[string]any{
			"item":          map[string]any{"type": "string", "minLength": 1},
			"specification": nullable("string"),
			"quantity":      nullable("integer"),
			"unitPrice":     map[string]any{"type": "integer", "minimum": 0},
			"supplyAmount":  nullable("integer"),
			"vat":           map[string]any{"type": "integer", "minimum": 0},
		},
	}
	validRow := map[string]any{
		"type":     "object",
		"required": []any{"item", "specification", "quantity", "unitPrice", "supplyAmount", "vat"},
		"properties": map[string]any{
			"item":          nullable("string"),
			"specification": nullable("string"),
			"quantity":      nullable("integer"),
			"unitPrice":     nullable("integer"),
			"supplyAmount":  nullable("integer"),
			"vat":           nullable("integer"),
		},
	}
	invalidRow := map[string]any{
		"type":     "object",
		"required": []any{"row", "issues"},
		"properties": map[string]any{
			"row":    map[string]any{"type": "string"},
			"issues": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"parsedItems", "cleanedRows", "schemaValidation"},
		"properties": map[string]any{
			"parsedItems": map[string]any{"type": "array", "items": item},
			"cleanedRows": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"schemaValidation": map[string]any{
				"type":     "object",
				"required": []any{"validCount", "invalidCount", "validRows", "invalidRows"},
				"properties": map[string]any{
					"validCount":   map[string]any{"type": "integer", "minimum": 0},
					"invalidCount": map[string]any{"type": "integer", "minimum": 0},
					"validRows":    map[string]any{"type": "array", "items": validRow},
					"invalidRows":  map[string]any{"type": "array", "items": invalidRow},
				},
			},
		},
	}
}

var (
	resultSchemaOnce sync.Once
	resultSchema     *jsonschema.Schema
	resultSchemaErr  error
)

func compiledResultSchema() (*jsonschema.Schema, error) {
	resultSchemaOnce.Do(func() {
		b, err := json.Marshal(ResultJSONSchema())
		if err != nil {
			resultSchemaErr = fmt.Errorf("marshal result schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("result.json", bytes.NewReader(b)); err != nil {
			resultSchemaErr = fmt.Errorf("add result schema: %w", err)
			return
		}
		resultSchema, resultSchemaErr = compiler.Compile("result.json")
	})
	return resultSchema, resultSchemaErr
}

// ValidateResultJSON checks that data is a serialized Result.
func ValidateResultJSON(data []byte) error {
	schema, err := compiledResultSchema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("result does not match contract: %w", err)
	}
	return nil
}
