package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/entity"
)

type fakeItems struct {
	items []*entity.LineItem
	asked []uuid.UUID
}

func (f *fakeItems) ReplaceForJob(context.Context, uuid.UUID, string, []table.ParsedItem) ([]*entity.LineItem, error) {
	return nil, nil
}

func (f *fakeItems) ListByJob(ctx context.Context, id uuid.UUID) ([]*entity.LineItem, error) {
	return f.ListAll(ctx, []uuid.UUID{id})
}

func (f *fakeItems) ListAll(_ context.Context, ids []uuid.UUID) ([]*entity.LineItem, error) {
	f.asked = ids
	return f.items, nil
}

func i64(v int64) *int64   { return &v }
func str(s string) *string { return &s }

func readRows(t *testing.T, b []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestExportLineItemsXLSX(t *testing.T) {
	job := uuid.New()
	repo := &fakeItems{items: []*entity.LineItem{
		{JobID: job, Item: "사과", Specification: str("1kg"), Quantity: i64(2), UnitPrice: 5000,
			SupplyAmount: i64(10000), VAT: 1000, Source: entity.LineItemSourceParsed, Filename: "a.txt"},
		{JobID: job, Item: "배", UnitPrice: 1500, Source: entity.LineItemSourceRefined},
	}}
	b, err := NewService(repo, nil).ExportLineItemsXLSX(context.Background(), []uuid.UUID{job})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{job}, repo.asked)

	rows := readRows(t, b, LineItemsSheet)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"품목", "규격", "수량", "단가", "공급가액", "세액", "Source"}, rows[0])
	assert.Equal(t, "사과", rows[1][0])
	assert.Equal(t, "1kg", rows[1][1])
	assert.Equal(t, "a.txt (parsed)", rows[1][6])
	assert.Equal(t, "refined", rows[2][6])
	assert.Equal(t, "합계", rows[3][0])
	assert.Equal(t, "10,000", rows[3][4])
	assert.Equal(t, "1,000", rows[3][5])
}

func TestExportResultXLSX(t *testing.T) {
	e, err := table.NewExtractor(table.DefaultTemplate(), nil)
	require.NoError(t, err)
	res := e.Extract("품목 | 규격 | 수량 | 단 | 가 | 공급가액\n" +
		"사과 | 1kg | 2 | 5,000 | 10,000\n" +
		"배 | 3,000\n" +
		"합계 | 13,000\n" +
		"이하여백\n")

	b, err := NewService(nil, nil).ExportResultXLSX("inv.txt", res)
	require.NoError(t, err)

	rows := readRows(t, b, LineItemsSheet)
	require.GreaterOrEqual(t, len(rows), 3)
	assert.Equal(t, "사과", rows[1][0])
	assert.Equal(t, "inv.txt", rows[1][6])

	invalid := readRows(t, b, InvalidRowsSheet)
	require.Len(t, invalid, 2)
	assert.Equal(t, "배 | 3,000", invalid[1][0])
	assert.Contains(t, invalid[1][1], table.IssueTooFewColumns)
}
