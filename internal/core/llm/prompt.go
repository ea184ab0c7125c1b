package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxOCRPromptChars = 3000

// BuildRefineSystemPrompt describes the correction task and the output rules.
func BuildRefineSystemPrompt() string {
	parts := []string{
		"You review line items extracted from a Korean transaction statement (거래명세서).",
		"You receive the rule-based extraction result as JSON: parsedItems, cleanedRows and schemaValidation.",
		"Return ONLY JSON that matches the provided JSON Schema, with one entry in 'items' per real invoice line, in document order.",
		"Use cleanedRows and schemaValidation.invalidRows to fix item names, specifications, quantities and amounts that the rules got wrong.",
		"Do not invent lines that are not in the source. Drop subtotal, total and signature rows.",
		"Amounts are whole Korean won as integers without separators or currency symbols.",
		"unitPrice is the price per unit; supplyAmount is usually quantity times unitPrice.",
		"vat is the printed tax amount when visible; otherwise omit it.",
		"specification is the size or pack descriptor (e.g. 500ml, 1kg*10ea); use null when absent.",
		"If something is unclear, say so briefly in 'notes' and set 'confidence' between 0 and 1.",
	}
	return strings.Join(parts, " ")
}

// BuildRefineUserPrompt embeds the extraction result and, unless an image is
// attached, the head of the OCR text.
func BuildRefineUserPrompt(req RefineRequest, imageAttached bool) (string, error) {
	result, err := json.MarshalIndent(req.Result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	var b strings.Builder
	if name := strings.TrimSpace(req.SourceName); name != "" {
		b.WriteString("Source: ")
		b.WriteString(name)
		b.WriteString("\n\n")
	}
	b.WriteString("Extraction result:\n")
	b.Write(result)
	b.WriteString("\n")

	if !imageAttached {
		if ocr := strings.TrimSpace(req.OCRText); ocr != "" {
			b.WriteString("\nOCR text (first ~3k chars):\n")
			b.WriteString(truncateRunes(ocr, maxOCRPromptChars))
		}
	} else {
		b.WriteString("\nNote: the invoice image is attached; prefer what is visible in it over the OCR-derived rows.\n")
	}
	return b.String(), nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "\n…(truncated)"
}
