package table

// Validation issue codes.
const (
	IssueTooFewColumns   = "colCount<4"
	IssueNoItem          = "no item-like column"
	IssueTooFewMoney     = "moneyTokens<2"
	IssueMissingItem     = "missing item"
	IssueMissingQuantity = "missing quantity"
	IssueMissingUnit     = "missing unitPrice"
	IssueMissingSupply   = "missing supplyAmount"
)

const minSchemaColumns = 4

// SchemaValidator checks cleaned rows against the column-role schema and
// reports them with VAT backfilled.
type SchemaValidator struct {
	vat VATCalculator
}

// NewSchemaValidator returns a validator that backfills VAT with vat.
func NewSchemaValidator(vat VATCalculator) *SchemaValidator {
	return &SchemaValidator{vat: vat}
}

// Validate checks every row and builds the report.
func (v *SchemaValidator) Validate(rows []string) ([]ValidationRecord, SchemaReport) {
	records := make([]ValidationRecord, 0, len(rows))
	for i, row := range rows {
		records = append(records, ValidateRow(i, row))
	}
	return records, Report(records, v.vat)
}

// ValidateRow assigns column roles independently of RowParser and lists every
// reason the row falls short. The column-count and money-count checks stop early.
func ValidateRow(index int, row string) ValidationRecord {
	cols := Cells(row)
	rec := ValidationRecord{
		RowIndex: index,
		Row:      row,
		Cols:     cols,
		ColCount: len(cols),
		Issues:   []string{},
	}
	if len(cols) < minSchemaColumns {
		rec.Issues = append(rec.Issues, IssueTooFewColumns)
		return rec
	}

	itemIdx := -1
	for i, c := range cols {
		if hasLetter(c) {
			itemIdx = i
			break
		}
	}
	if itemIdx < 0 {
		rec.Issues = append(rec.Issues, IssueNoItem)
	} else {
		rec.Schema.Item = strPtr(cols[itemIdx])
	}

	var money []moneyCell
	for i, c := range cols {
		if v, ok := plainMoneyValue(c); ok {
			money = append(money, moneyCell{idx: i, value: v})
		}
	}
	if len(money) < 2 {
		rec.Issues = append(rec.Issues, IssueTooFewMoney)
		return rec
	}
	unit := money[0]
	rec.Schema.UnitPrice = int64Ptr(unit.value)
	rec.Schema.SupplyAmount = int64Ptr(money[1].value)
	if len(money) > 2 {
		rec.Schema.VAT = int64Ptr(money[2].value)
	}

	qtyIdx := -1
	for i := unit.idx - 1; i > itemIdx; i-- {
		if reSchemaQty.MatchString(cols[i]) {
			qtyIdx = i
			rec.Schema.Quantity = atoiPtr(cols[i])
			break
		}
	}

	specEnd := unit.idx
	if qtyIdx >= 0 {
		specEnd = qtyIdx
	}
	for i := itemIdx + 1; i < specEnd; i++ {
		if reSchemaQty.MatchString(cols[i]) {
			continue
		}
		if _, ok := plainMoneyValue(cols[i]); ok {
			continue
		}
		rec.Schema.Specification = strPtr(cols[i])
		break
	}

	if rec.Schema.Item == nil {
		rec.Issues = append(rec.Issues, IssueMissingItem)
	}
	if rec.Schema.Quantity == nil {
		rec.Issues = append(rec.Issues, IssueMissingQuantity)
	}
	if rec.Schema.UnitPrice == nil {
		rec.Issues = append(rec.Issues, IssueMissingUnit)
	}
	if rec.Schema.SupplyAmount == nil {
		rec.Issues = append(rec.Issues, IssueMissingSupply)
	}
	return rec
}

// Report partitions records into the reporting shape, backfilling VAT on valid
// rows that did not carry one.
func Report(records []ValidationRecord, vat VATCalculator) SchemaReport {
	rep := SchemaReport{
		ValidRows:   []SchemaFields{},
		InvalidRows: []InvalidRow{},
	}
	for _, r := range records {
		if !r.Valid() {
			rep.InvalidRows = append(rep.InvalidRows, InvalidRow{Row: r.Row, Issues: r.Issues})
			continue
		}
		fields := r.Schema
		if fields.VAT == nil && fields.SupplyAmount != nil {
			fields.VAT = int64Ptr(vat.Of(fields.SupplyAmount))
		}
		rep.ValidRows = append(rep.ValidRows, fields)
	}
	rep.ValidCount = len(rep.ValidRows)
	rep.InvalidCount = len(rep.InvalidRows)
	return rep
}
