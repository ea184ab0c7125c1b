package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-lines/internal/core/llm"
)

var _ llm.Refiner = (*Client)(nil)

// Refine implements llm.Refiner over chat/completions in JSON mode. The answer is
// validated against the refined-items schema; unless StrictSchema is set, a
// failing answer gets one lenient repair pass before it is rejected.
func (c *Client) Refine(ctx context.Context, req llm.RefineRequest) (llm.RefinedItems, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	log := c.logger.With("req_id", rid)

	attach, dataURL, mimeType := llm.ShouldAttachImage(req, c.cfg.MaxVisionMB)
	log.Info("llm.refine.start",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"source", req.SourceName,
		"parsed_items", len(req.Result.ParsedItems),
		"cleaned_rows", len(req.Result.CleanedRows),
		"ocr_confidence", req.OCRConfidence,
		"image_attached", attach,
		"mime", mimeType,
	)

	schema := llm.BuildRefinedItemsJSONSchema()
	user, err := llm.BuildRefineUserPrompt(req, attach)
	if err != nil {
		return llm.RefinedItems{}, nil, err
	}
	user += "\n\nReturn ONLY JSON that matches the provided schema."

	var userContent any = user
	if attach {
		userContent = []map[string]any{
			{"type": "text", "text": user},
			{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
		}
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildRefineSystemPrompt()},
			{"role": "user", "content": userContent},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, log)
	if err != nil {
		log.Error("llm.refine.http_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return llm.RefinedItems{}, raw, fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		log.Error("llm.refine.decode_error", "error", err, "raw_bytes", len(raw))
		return llm.RefinedItems{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		log.Error("llm.refine.no_choices", "raw", string(raw))
		return llm.RefinedItems{}, raw, fmt.Errorf("no choices in openai response")
	}
	content := []byte(strings.TrimSpace(cc.Choices[0].Message.Content))

	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		if c.cfg.StrictSchema {
			log.Error("llm.refine.schema_validation_failed", "error", err, "content", string(content))
			return llm.RefinedItems{}, content, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, changed, sErr := llm.SanitizeRefinedItems(content)
		if sErr != nil {
			log.Error("llm.refine.sanitize_failed", "error", sErr)
			return llm.RefinedItems{}, content, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			log.Error("llm.refine.schema_validation_failed", "error", vErr, "content", string(content))
			return llm.RefinedItems{}, content, fmt.Errorf("schema validation failed: %w", vErr)
		}
		log.Warn("llm.refine.lenient_sanitize_applied", "changed", changed)
		content = cleaned
	}

	var out llm.RefinedItems
	if err := json.Unmarshal(content, &out); err != nil {
		log.Error("llm.refine.unmarshal_failed", "error", err)
		return llm.RefinedItems{}, content, fmt.Errorf("unmarshal items: %w", err)
	}

	log.Info("llm.refine.ok",
		"items", len(out.Items),
		"confidence", out.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
