package entity

import (
	"github.com/google/uuid"
)

// Line item origins.
const (
	LineItemSourceParsed  = "parsed"
	LineItemSourceRefined = "refined"
)

// LineItem is one stored invoice line.
type LineItem struct {
	ID            uuid.UUID `json:"id"`
	JobID         uuid.UUID `json:"job_id"`
	Position      int       `json:"position"`
	Item          string    `json:"item"`
	Specification *string   `json:"specification"`
	Quantity      *int64    `json:"quantity"`
	UnitPrice     int64     `json:"unitPrice"`
	SupplyAmount  *int64    `json:"supplyAmount"`
	VAT           int64     `json:"vat"`
	Source        string    `json:"source"`
	Filename      string    `json:"filename,omitempty"`
}
