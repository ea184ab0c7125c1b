package llm

import (
	"context"

	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
)

// RefineRequest carries one document's extraction output to the refiner.
type RefineRequest struct {
	Result        table.Result
	OCRText       string
	SourceName    string
	FilePath      string  // optional; images may be attached when OCR confidence is low
	OCRConfidence float32 // 0 when unknown
}

// RefinedItem is one line item as returned by the model. VAT may be omitted.
type RefinedItem struct {
	Item          string  `json:"item"`
	Specification *string `json:"specification,omitempty"`
	Quantity      *int64  `json:"quantity,omitempty"`
	UnitPrice     int64   `json:"unitPrice"`
	SupplyAmount  *int64  `json:"supplyAmount,omitempty"`
	VAT           *int64  `json:"vat,omitempty"`
}

// RefinedItems is the normalized shape we want from the model.
type RefinedItems struct {
	Items      []RefinedItem `json:"items"`
	Notes      string        `json:"notes,omitempty"`
	Confidence float32       `json:"confidence,omitempty"` // optional (0..1)
}

// Refiner is the interface the processor depends on.
type Refiner interface {
	Refine(ctx context.Context, req RefineRequest) (RefinedItems, []byte /*rawJSON*/, error)
}

// ParsedItems converts refined items to table items, computing VAT where the
// model left it out.
func (r RefinedItems) ParsedItems(vat table.VATCalculator) []table.ParsedItem {
	out := make([]table.ParsedItem, 0, len(r.Items))
	for _, it := range r.Items {
		p := table.ParsedItem{
			Item:          it.Item,
			Specification: it.Specification,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			SupplyAmount:  it.SupplyAmount,
		}
		if it.VAT != nil {
			p.VAT = *it.VAT
		} else {
			p.VAT = vat.Of(it.SupplyAmount)
		}
		out = append(out, p)
	}
	return out
}
