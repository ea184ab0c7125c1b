package llm

// BuildRefinedItemsJSONSchema returns the JSON Schema sent to the model and used
// locally to validate its answer.
func BuildRefinedItemsJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"item", "unitPrice"},
		"properties": map[string]any{
			"item":          map[string]any{"type": "string", "minLength": 1},
			"specification": map[string]any{"type": []any{"string", "null"}},
			"quantity":      wonProp(true),
			"unitPrice":     wonProp(false),
			"supplyAmount":  wonProp(true),
			"vat":           wonProp(true),
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"items"},
		"properties": map[string]any{
			"items":      map[string]any{"type": "array", "items": item},
			"notes":      map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
	}
}

// wonProp is a non-negative whole number of won (or units).
func wonProp(nullable bool) map[string]any {
	if nullable {
		return map[string]any{"type": []any{"integer", "null"}, "minimum": 0}
	}
	return map[string]any{"type": "integer", "minimum": 0}
}
