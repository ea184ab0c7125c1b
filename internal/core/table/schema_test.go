package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRowValid(t *testing.T) {
	rec := ValidateRow(0, "사과 | 1kg | 2 | 5,000 | 10,000")
	require.True(t, rec.Valid(), rec.Issues)
	assert.Equal(t, 5, rec.ColCount)
	assert.Equal(t, "사과", *rec.Schema.Item)
	assert.Equal(t, "1kg", *rec.Schema.Specification)
	assert.Equal(t, int64(2), *rec.Schema.Quantity)
	assert.Equal(t, int64(5000), *rec.Schema.UnitPrice)
	assert.Equal(t, int64(10000), *rec.Schema.SupplyAmount)
	assert.Nil(t, rec.Schema.VAT)
}

func TestValidateRowThirdMoneyTokenIsVAT(t *testing.T) {
	rec := ValidateRow(0, "사과 | 2 | 30,000 | 60,000 | 6,000")
	require.True(t, rec.Valid())
	assert.Equal(t, int64(6000), *rec.Schema.VAT)

	rep := Report([]ValidationRecord{rec}, defaultVAT)
	require.Len(t, rep.ValidRows, 1)
	assert.Equal(t, int64(6000), *rep.ValidRows[0].VAT)
}

func TestValidateRowIssues(t *testing.T) {
	cases := []struct {
		row    string
		issues []string
	}{
		{"사과 | 5,000", []string{IssueTooFewColumns}},
		{"1 | 2 | 3 | 4", []string{IssueNoItem, IssueTooFewMoney}},
		{"사과 | 2 | 5,000 | 비고", []string{IssueTooFewMoney}},
		{"사과 | 특 | 3,000 | 6,000", []string{IssueMissingQuantity}},
		{"1 | 2 | 3,000 | 6,000", []string{IssueNoItem, IssueMissingItem}},
	}
	for _, tc := range cases {
		rec := ValidateRow(0, tc.row)
		assert.Equal(t, tc.issues, rec.Issues, tc.row)
	}
}

func TestReport(t *testing.T) {
	records := []ValidationRecord{
		ValidateRow(0, "품명A | 10 | 5,000 | 50,000"),
		ValidateRow(1, "짧음 | 1"),
	}
	rep := Report(records, defaultVAT)
	assert.Equal(t, 1, rep.ValidCount)
	assert.Equal(t, 1, rep.InvalidCount)
	require.NotNil(t, rep.ValidRows[0].VAT)
	assert.Equal(t, int64(5000), *rep.ValidRows[0].VAT)
	assert.Equal(t, InvalidRow{Row: "짧음 | 1", Issues: []string{IssueTooFewColumns}}, rep.InvalidRows[0])

	empty := Report(nil, defaultVAT)
	assert.NotNil(t, empty.ValidRows)
	assert.NotNil(t, empty.InvalidRows)
}

// The row parser and the validator classify columns independently. A currency
// suffix is a money token to the parser but not to the validator's plain-digit rule.
func TestParserAndValidatorDiverge(t *testing.T) {
	p := newTestParser(t)
	row := "품명A | 10 | 5,000원 | 50,000"

	item, err := p.ParseRow(row)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), item.UnitPrice)
	assert.Equal(t, int64(50000), *item.SupplyAmount)

	rec := ValidateRow(0, row)
	assert.False(t, rec.Valid())
	assert.Equal(t, []string{IssueTooFewMoney}, rec.Issues)
}

// Three columns are enough for the parser but never for the validator.
func TestParserAcceptsRowTooShortForValidator(t *testing.T) {
	p := newTestParser(t)
	row := "사과 | 2 | 3,000"

	_, err := p.ParseRow(row)
	require.NoError(t, err)
	assert.Equal(t, []string{IssueTooFewColumns}, ValidateRow(0, row).Issues)
}

func TestSchemaValidatorUsesRate(t *testing.T) {
	vat, err := NewVATCalculator("0.05")
	require.NoError(t, err)

	records, rep := NewSchemaValidator(vat).Validate([]string{
		"사과 | 500g | 2 | 3,000 | 6,000",
		"합계 | 6,000",
	})
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[1].RowIndex)
	assert.Equal(t, 1, rep.ValidCount)
	assert.Equal(t, 1, rep.InvalidCount)
	require.NotNil(t, rep.ValidRows[0].VAT)
	assert.Equal(t, int64(300), *rep.ValidRows[0].VAT)
}
