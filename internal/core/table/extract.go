package table

import (
	"fmt"
	"log/slog"
)

// Extractor runs the full text-to-table pipeline for one template. It holds no
// per-document state and is safe for concurrent use.
type Extractor struct {
	locator   *Locator
	sanitizer *Sanitizer
	parser    *RowParser
	validator *SchemaValidator
	vat       VATCalculator
	logger    *slog.Logger
}

// NewExtractor compiles tpl once and shares it across the pipeline stages.
func NewExtractor(tpl Template, logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := tpl.compile()
	if err != nil {
		return nil, err
	}
	return &Extractor{
		locator:   &Locator{c: c},
		sanitizer: &Sanitizer{c: c},
		parser:    &RowParser{c: c},
		validator: NewSchemaValidator(c.vat),
		vat:       c.vat,
		logger:    logger,
	}, nil
}

// Extract turns raw OCR text into parsed items, cleaned rows and a validation
// report. It never fails: header, footer and row problems are recorded in
// Result.Diagnostics and the schema report.
func (e *Extractor) Extract(raw any) Result {
	lines := Normalize(CoerceText(raw))
	res := Result{
		ParsedItems: []ParsedItem{},
		CleanedRows: []string{},
		SchemaValidation: SchemaReport{
			ValidRows:   []SchemaFields{},
			InvalidRows: []InvalidRow{},
		},
	}

	res.Header = e.locator.FindHeader(lines)
	if res.Header == nil {
		res.Diagnostics = append(res.Diagnostics, ErrNoHeaderFound)
		res.Slice = e.locator.Slice(lines, nil, nil)
		e.logger.Debug("table.extract.no_header", "lines", len(lines))
		return res
	}
	res.Footer = e.locator.FindFooter(lines, res.Header.RowIndex+1)
	if res.Footer == nil {
		res.Diagnostics = append(res.Diagnostics, ErrNoFooterFound)
	}
	res.Slice = e.locator.Slice(lines, res.Header, res.Footer)

	sanitized := e.sanitizer.Sanitize(res.Slice.Rows)
	res.CleanedRows = sanitized.Rows
	if len(sanitized.Leftover) > 0 {
		res.Diagnostics = append(res.Diagnostics,
			fmt.Errorf("%d numeric tokens left unplaced: %v", len(sanitized.Leftover), sanitized.Leftover))
	}

	for i, row := range res.CleanedRows {
		item, err := e.parser.ParseRow(row)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, fmt.Errorf("row %d: %w", i, err))
			continue
		}
		item.VAT = e.vat.Of(item.SupplyAmount)
		res.ParsedItems = append(res.ParsedItems, item)
	}

	res.Records, res.SchemaValidation = e.validator.Validate(res.CleanedRows)
	for _, rec := range res.Records {
		if !rec.Valid() {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Errorf("row %d: %w: %v", rec.RowIndex, ErrSchemaInvalid, rec.Issues))
		}
	}

	e.logger.Debug("table.extract.done",
		"lines", len(lines),
		"header_row", res.Header.RowIndex,
		"slice_start", res.Slice.Start,
		"slice_end", res.Slice.End,
		"cleaned_rows", len(res.CleanedRows),
		"parsed_items", len(res.ParsedItems),
		"schema_valid", res.SchemaValidation.ValidCount,
		"schema_invalid", res.SchemaValidation.InvalidCount,
	)
	return res
}

// VAT returns the calculator the extractor applies to parsed items.
func (e *Extractor) VAT() VATCalculator { return e.vat }
