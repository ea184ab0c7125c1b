package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
	"github.com/joseph-ayodele/invoice-lines/internal/entity"
	"github.com/joseph-ayodele/invoice-lines/internal/repository"
	"github.com/joseph-ayodele/invoice-lines/internal/utils"
)

const (
	LineItemsSheet   = "LineItems"
	InvalidRowsSheet = "InvalidRows"
)

var lineItemHeaders = []string{"품목", "규격", "수량", "단가", "공급가액", "세액", "Source"}

// Service produces XLSX bytes for stored or in-memory line items.
type Service struct {
	items  repository.LineItemRepository
	logger *slog.Logger
}

func NewService(items repository.LineItemRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{items: items, logger: logger}
}

// ExportLineItemsXLSX returns a workbook with the stored lines of jobIDs, or of
// every job when jobIDs is empty.
func (s *Service) ExportLineItemsXLSX(ctx context.Context, jobIDs []uuid.UUID) ([]byte, error) {
	start := time.Now()
	items, err := s.items.ListAll(ctx, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}

	rows := make([]lineRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, lineRow{
			item:   it.Item,
			spec:   it.Specification,
			qty:    it.Quantity,
			unit:   it.UnitPrice,
			supply: it.SupplyAmount,
			vat:    it.VAT,
			source: sourceLabel(it),
		})
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := writeLineItems(f, rows); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"jobs", len(jobIDs),
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportResultXLSX writes one extraction result without touching storage. Rows
// the schema check rejected go to a second sheet.
func (s *Service) ExportResultXLSX(source string, res table.Result) ([]byte, error) {
	rows := make([]lineRow, 0, len(res.ParsedItems))
	for _, it := range res.ParsedItems {
		rows = append(rows, lineRow{
			item:   it.Item,
			spec:   it.Specification,
			qty:    it.Quantity,
			unit:   it.UnitPrice,
			supply: it.SupplyAmount,
			vat:    it.VAT,
			source: source,
		})
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := writeLineItems(f, rows); err != nil {
		return nil, err
	}
	if len(res.SchemaValidation.InvalidRows) > 0 {
		if _, err := f.NewSheet(InvalidRowsSheet); err != nil {
			return nil, err
		}
		_ = f.SetSheetRow(InvalidRowsSheet, "A1", &[]any{"Row", "Issues"})
		for i, r := range res.SchemaValidation.InvalidRows {
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			_ = f.SetSheetRow(InvalidRowsSheet, cell, &[]any{r.Row, strings.Join(r.Issues, "; ")})
		}
		_ = f.SetColWidth(InvalidRowsSheet, "A", "A", 60)
		_ = f.SetColWidth(InvalidRowsSheet, "B", "B", 40)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Debug("export.result_xlsx.ok", "source", source, "rows", len(rows))
	return buf.Bytes(), nil
}

type lineRow struct {
	item   string
	spec   *string
	qty    *int64
	unit   int64
	supply *int64
	vat    int64
	source string
}

func writeLineItems(f *excelize.File, rows []lineRow) error {
	if err := f.SetSheetName("Sheet1", LineItemsSheet); err != nil {
		return err
	}
	sheet := LineItemsSheet

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	if err != nil {
		return err
	}

	header := make([]any, len(lineItemHeaders))
	for i, h := range lineItemHeaders {
		header[i] = h
	}
	_ = f.SetSheetRow(sheet, "A1", &header)
	_ = f.SetCellStyle(sheet, "A1", "G1", bold)

	var supplyTotal, vatTotal int64
	row := 2
	for _, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetSheetRow(sheet, cell, &[]any{
			r.item,
			utils.StrOrEmpty(r.spec),
			optional(r.qty),
			r.unit,
			optional(r.supply),
			r.vat,
			r.source,
		})
		if r.supply != nil {
			supplyTotal += *r.supply
		}
		vatTotal += r.vat
		row++
	}

	totals, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, totals, &[]any{"합계", "", "", "", supplyTotal, vatTotal, ""})
	_ = f.SetCellStyle(sheet, totals, fmt.Sprintf("G%d", row), bold)
	_ = f.SetCellStyle(sheet, "D2", fmt.Sprintf("F%d", row), money)

	_ = f.SetColWidth(sheet, "A", "A", 32) // item
	_ = f.SetColWidth(sheet, "B", "B", 16) // spec
	_ = f.SetColWidth(sheet, "C", "C", 8)  // qty
	_ = f.SetColWidth(sheet, "D", "F", 14) // amounts
	_ = f.SetColWidth(sheet, "G", "G", 40) // source
	return nil
}

func optional(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}

func sourceLabel(it *entity.LineItem) string {
	if it.Filename == "" {
		return it.Source
	}
	return it.Filename + " (" + it.Source + ")"
}
