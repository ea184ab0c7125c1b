package table

import (
	"errors"
	"strings"
	"unicode"
)

// ColumnSeparator is the canonical separator written between OCR columns.
const ColumnSeparator = " | "

var (
	ErrNoHeaderFound = errors.New("no header row found")
	ErrNoFooterFound = errors.New("no footer row found")
	ErrRowRejected   = errors.New("row rejected")
	ErrSchemaInvalid = errors.New("row failed schema validation")
)

// Footer kinds.
const (
	FooterMarkerKind   = "marker"
	FooterAssigneeKind = "assignee"
)

// KeywordHit is a span of adjacent cells whose whitespace-stripped concatenation
// equals a target keyword.
type KeywordHit struct {
	RowIndex       int    `json:"rowIndex"`
	StartCol       int    `json:"startCol"`
	EndCol         int    `json:"endCol"`
	MatchedText    string `json:"matchedText"`
	NormalizedText string `json:"normalizedText"`
}

// FooterMarker is the row that terminates the data region.
type FooterMarker struct {
	Kind     string `json:"kind"`
	RowIndex int    `json:"rowIndex"`
	ColIndex int    `json:"colIndex"`
	Value    string `json:"value"`
}

// TableSlice is the inclusive row range between header and footer.
type TableSlice struct {
	Start int      `json:"start"`
	End   int      `json:"end"`
	Rows  []string `json:"rows"`
}

// ParsedItem is one extracted invoice line.
type ParsedItem struct {
	Item          string  `json:"item"`
	Specification *string `json:"specification"`
	Quantity      *int64  `json:"quantity"`
	UnitPrice     int64   `json:"unitPrice"`
	SupplyAmount  *int64  `json:"supplyAmount"`
	VAT           int64   `json:"vat"`
}

// SchemaFields is the column-role assignment made by the SchemaValidator.
type SchemaFields struct {
	Item          *string `json:"item"`
	Specification *string `json:"specification"`
	Quantity      *int64  `json:"quantity"`
	UnitPrice     *int64  `json:"unitPrice"`
	SupplyAmount  *int64  `json:"supplyAmount"`
	VAT           *int64  `json:"vat"`
}

// ValidationRecord is the SchemaValidator's verdict on one cleaned row.
type ValidationRecord struct {
	RowIndex int          `json:"rowIndex"`
	Row      string       `json:"row"`
	Cols     []string     `json:"cols"`
	ColCount int          `json:"colCount"`
	Schema   SchemaFields `json:"schema"`
	Issues   []string     `json:"issues"`
}

// Valid reports whether the row raised no issues.
func (r ValidationRecord) Valid() bool { return len(r.Issues) == 0 }

// InvalidRow is the reporting shape of a rejected ValidationRecord.
type InvalidRow struct {
	Row    string   `json:"row"`
	Issues []string `json:"issues"`
}

// SchemaReport partitions cleaned rows into valid and invalid.
type SchemaReport struct {
	ValidCount   int            `json:"validCount"`
	InvalidCount int            `json:"invalidCount"`
	ValidRows    []SchemaFields `json:"validRows"`
	InvalidRows  []InvalidRow   `json:"invalidRows"`
}

// Result is the output object handed to reporting and refinement consumers.
// Its JSON field names are a stable contract.
type Result struct {
	ParsedItems      []ParsedItem `json:"parsedItems"`
	CleanedRows      []string     `json:"cleanedRows"`
	SchemaValidation SchemaReport `json:"schemaValidation"`

	Header      *KeywordHit        `json:"-"`
	Footer      *FooterMarker      `json:"-"`
	Slice       TableSlice         `json:"-"`
	Records     []ValidationRecord `json:"-"`
	Diagnostics []error            `json:"-"`
}

// NeedsReview reports whether any stage degraded or rejected data.
func (r Result) NeedsReview() bool {
	return len(r.Diagnostics) > 0 || r.SchemaValidation.InvalidCount > 0
}

// Cells splits a normalized line into columns, trimming each cell and dropping
// empty ones. A "|" counts as a separator unless it sits between two
// non-space characters, so a pipe OCR reads inside a word ("Mi|k") stays put.
func Cells(line string) []string {
	var (
		out  []string
		cell strings.Builder
	)
	rs := []rune(line)
	for i, r := range rs {
		if r == '|' && !pipeInWord(rs, i) {
			out = appendCell(out, cell.String())
			cell.Reset()
			continue
		}
		cell.WriteRune(r)
	}
	return appendCell(out, cell.String())
}

func pipeInWord(rs []rune, i int) bool {
	if i == 0 || i+1 >= len(rs) {
		return false
	}
	prev, next := rs[i-1], rs[i+1]
	return !unicode.IsSpace(prev) && !unicode.IsSpace(next) && prev != '|' && next != '|'
}

func appendCell(out []string, c string) []string {
	if c = strings.TrimSpace(c); c != "" {
		out = append(out, c)
	}
	return out
}

// JoinCells is the inverse of Cells.
func JoinCells(cols []string) string {
	return strings.Join(cols, ColumnSeparator)
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
