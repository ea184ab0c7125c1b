package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	itemKeys     = map[string]bool{"item": true, "specification": true, "quantity": true, "unitPrice": true, "supplyAmount": true, "vat": true}
	topKeys      = map[string]bool{"items": true, "notes": true, "confidence": true}
	optionalInts = []string{"quantity", "supplyAmount", "vat"}
	wonCleaner   = strings.NewReplacer(",", "", "원", "", "₩", "", " ", "")
)

// SanitizeRefinedItems repairs the usual model slips so the document can
// validate: comma-grouped or suffixed amounts given as strings, fractional
// numbers, "-" specifications, null VAT and unknown keys. It returns the
// repaired JSON and the paths it touched.
func SanitizeRefinedItems(doc []byte) ([]byte, []string, error) {
	v, err := decodeJSON(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("sanitize: top level is %T, want object", v)
	}

	var changed []string
	for k := range m {
		if !topKeys[k] {
			delete(m, k)
			changed = append(changed, k)
		}
	}

	items, _ := m["items"].([]any)
	for i, raw := range items {
		it, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		path := func(k string) string { return fmt.Sprintf("items[%d].%s", i, k) }

		for k := range it {
			if !itemKeys[k] {
				delete(it, k)
				changed = append(changed, path(k))
			}
		}

		if s, ok := it["item"].(string); ok && s != strings.TrimSpace(s) {
			it["item"] = strings.TrimSpace(s)
			changed = append(changed, path("item"))
		}

		switch s := it["specification"].(type) {
		case string:
			t := strings.TrimSpace(s)
			if t == "" || t == "-" {
				it["specification"] = nil
				changed = append(changed, path("specification"))
			} else if t != s {
				it["specification"] = t
				changed = append(changed, path("specification"))
			}
		case nil:
		default:
			it["specification"] = fmt.Sprint(s)
			changed = append(changed, path("specification"))
		}

		if val, ok := it["unitPrice"]; ok {
			if n, fixed, ok := coerceWon(val); ok && fixed {
				it["unitPrice"] = n
				changed = append(changed, path("unitPrice"))
			}
		}
		for _, k := range optionalInts {
			val, present := it[k]
			if !present {
				continue
			}
			if val == nil {
				if k == "vat" {
					delete(it, k)
					changed = append(changed, path(k))
				}
				continue
			}
			n, fixed, ok := coerceWon(val)
			switch {
			case !ok:
				it[k] = nil
				changed = append(changed, path(k))
			case fixed:
				it[k] = n
				changed = append(changed, path(k))
			}
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, changed, nil
}

// coerceWon reads a whole-number amount. fixed reports whether the input was
// not already a plain JSON integer.
func coerceWon(v any) (n int64, fixed, ok bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, false, true
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false, false
		}
		return int64(math.Round(f)), true, true
	case float64:
		return int64(math.Round(t)), true, true
	case string:
		s := wonCleaner.Replace(strings.TrimSpace(t))
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(math.Round(f)), true, true
		}
	}
	return 0, false, false
}
