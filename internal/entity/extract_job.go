package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractJob represents one document run through the extraction pipeline.
type ExtractJob struct {
	ID            uuid.UUID       `json:"id"`
	SourcePath    string          `json:"source_path"`
	Filename      string          `json:"filename"`
	ContentHash   string          `json:"content_hash"`
	Format        string          `json:"format"`
	Status        string          `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	OCRMethod     *string         `json:"ocr_method,omitempty"`
	OCRConfidence *float64        `json:"ocr_confidence,omitempty"`
	NeedsReview   bool            `json:"needs_review"`
	OCRText       *string         `json:"ocr_text,omitempty"`
	ResultJSON    json.RawMessage `json:"result_json,omitempty"`
	RefinedJSON   json.RawMessage `json:"refined_json,omitempty"`
	ModelName     *string         `json:"model_name,omitempty"`
}
